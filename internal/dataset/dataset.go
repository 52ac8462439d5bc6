package dataset

import (
	"bufio"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
)

// Dataset names one output pair under a base data path and knows how
// to resume an interrupted or repeated run: the previously written
// jsonl file doubles as the ledger of already-processed fetch
// targets.
type Dataset struct {
	// Name keys the output file pair: {Name}.jsonl and {Name}.txt.
	Name string

	// DataPath is the directory both files live in.
	DataPath string

	// DoneKey is the record field projected from prior output to
	// decide which fetch targets are already done. Defaults to "id".
	DoneKey string
}

func New(name, dataPath string) *Dataset {
	return &Dataset{Name: name, DataPath: dataPath, DoneKey: "id"}
}

func (d *Dataset) JSONLPath() string {
	return filepath.Join(d.DataPath, d.Name+".jsonl")
}

func (d *Dataset) TxtPath() string {
	return filepath.Join(d.DataPath, d.Name+".txt")
}

// DoneSet reads the dataset's existing jsonl output and projects the
// done key from every record. A missing file means a fresh run and
// yields an empty set. Records that don't carry the key are skipped;
// a malformed line is logged and skipped rather than aborting the
// run, since partial lines can survive a crash mid-write.
func (d *Dataset) DoneSet() (map[string]struct{}, error) {
	done := make(map[string]struct{})

	f, err := os.Open(d.JSONLPath())
	if err != nil {
		if os.IsNotExist(err) {
			return done, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			log.Printf("warn: %s line %d: skip malformed record: %v", d.JSONLPath(), line, err)
			continue
		}
		if v, ok := e.Field(d.doneKey()); ok {
			done[v] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return done, nil
}

// Unprocessed filters fetch targets against the done set, preserving
// order. Target identity is the target string itself.
func (d *Dataset) Unprocessed(targets []string) ([]string, error) {
	done, err := d.DoneSet()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if _, ok := done[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (d *Dataset) doneKey() string {
	if d.DoneKey == "" {
		return "id"
	}
	return d.DoneKey
}

// Blog posts can be long; a record line has to fit the scanner buffer.
const maxRecordBytes = 16 << 20
