package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Writer appends entries to a dataset's jsonl/txt pair. The two files
// move in lockstep: every jsonl record is paired with a three-line
// text block (title, blank line, text). Writes go straight to the
// files, so each entry is flushed before the next fetch begins.
//
// The writer does not deduplicate; that happened earlier when the
// fetch targets were filtered against the done set.
type Writer struct {
	jsonl   *os.File
	txt     *os.File
	written []Entry
}

// NewWriter opens both output files, appending by default or
// truncating when overwrite is set. On any open failure nothing stays
// open.
func (d *Dataset) NewWriter(overwrite bool) (*Writer, error) {
	if err := os.MkdirAll(d.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	jf, err := os.OpenFile(d.JSONLPath(), flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: open jsonl: %w", d.Name, err)
	}
	tf, err := os.OpenFile(d.TxtPath(), flags, 0o644)
	if err != nil {
		jf.Close()
		return nil, fmt.Errorf("dataset %s: open txt: %w", d.Name, err)
	}

	return &Writer{jsonl: jf, txt: tf}, nil
}

// Write serializes one entry to both files.
func (w *Writer) Write(e *Entry) error {
	rec, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	if _, err := w.jsonl.Write(append(rec, '\n')); err != nil {
		return fmt.Errorf("write jsonl: %w", err)
	}
	if _, err := fmt.Fprintf(w.txt, "%s\n\n%s\n", e.Title, e.Text); err != nil {
		return fmt.Errorf("write txt: %w", err)
	}
	w.written = append(w.written, *e)
	return nil
}

// Written returns the entries written so far, for verification or
// mirroring after the run.
func (w *Writer) Written() []Entry {
	return w.written
}

// Close closes both handles regardless of how far the run got. Safe
// to defer immediately after NewWriter.
func (w *Writer) Close() error {
	jerr := w.jsonl.Close()
	terr := w.txt.Close()
	if jerr != nil {
		return jerr
	}
	return terr
}
