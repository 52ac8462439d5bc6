package dataset

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validation errors for entry identity. These are data-integrity
// failures: callers fail fast instead of retrying.
var (
	ErrMissingText = errors.New("entry is missing text")
	ErrMissingID   = errors.New("entry is missing id")
	ErrIDMismatch  = errors.New("entry id does not match text")
)

// Entry is one normalized collected document. The six core fields are
// a fixed schema: they are always present in the serialized record,
// as null when unset. Extra carries source-specific fields (for
// example the paged_url a feed scraper uses as its dedup key) and is
// flattened into the same JSON object.
type Entry struct {
	DatePublished string
	Source        string
	Title         string
	URL           string
	ID            string
	Text          string
	Extra         map[string]any
}

// coreKeys is the fixed part of the record schema.
var coreKeys = []string{"date_published", "source", "title", "url", "id", "text"}

// AddID assigns the entry its content-derived identity: the hex MD5
// digest of the text lowercased. Identity is therefore a pure
// function of case-normalized text.
func (e *Entry) AddID() error {
	if e.Text == "" {
		return fmt.Errorf("add id: %w", ErrMissingText)
	}
	e.ID = hashText(e.Text)
	return nil
}

// VerifyID recomputes the content hash and checks it against the
// stored id. Used as a consistency check, not on the write path.
func (e *Entry) VerifyID() error {
	if e.ID == "" {
		return fmt.Errorf("verify id: %w", ErrMissingID)
	}
	if e.Text == "" {
		return fmt.Errorf("verify id: %w", ErrMissingText)
	}
	if hashText(e.Text) != e.ID {
		return fmt.Errorf("verify id: %w", ErrIDMismatch)
	}
	return nil
}

// Field looks up a value by its serialized key, covering both core
// fields and extras. Non-string extras are returned via fmt.
func (e *Entry) Field(key string) (string, bool) {
	switch key {
	case "date_published":
		return e.DatePublished, e.DatePublished != ""
	case "source":
		return e.Source, e.Source != ""
	case "title":
		return e.Title, e.Title != ""
	case "url":
		return e.URL, e.URL != ""
	case "id":
		return e.ID, e.ID != ""
	case "text":
		return e.Text, e.Text != ""
	}
	v, ok := e.Extra[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, s != ""
	}
	return fmt.Sprint(v), true
}

// SetExtra records a source-specific field on the entry.
func (e *Entry) SetExtra(key string, value any) {
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
}

// MarshalJSON emits the fixed-shape record: all core keys present
// (null when unset), extras flattened alongside them. Core fields win
// on key collisions.
func (e Entry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(coreKeys)+len(e.Extra))
	for k, v := range e.Extra {
		m[k] = v
	}
	m["date_published"] = nullable(e.DatePublished)
	m["source"] = nullable(e.Source)
	m["title"] = nullable(e.Title)
	m["url"] = nullable(e.URL)
	m["id"] = nullable(e.ID)
	m["text"] = nullable(e.Text)
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse: core keys fill the struct fields,
// everything else lands in Extra.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.DatePublished = takeString(m, "date_published")
	e.Source = takeString(m, "source")
	e.Title = takeString(m, "title")
	e.URL = takeString(m, "url")
	e.ID = takeString(m, "id")
	e.Text = takeString(m, "text")
	e.Extra = nil
	if len(m) > 0 {
		e.Extra = m
	}
	return nil
}

func hashText(text string) string {
	sum := md5.Sum([]byte(strings.ToLower(text)))
	return hex.EncodeToString(sum[:])
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func takeString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	delete(m, key)
	s, _ := v.(string)
	return s
}
