package emitter

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/shotty/pkg/resource"
)

// StructuredEmitter collects records and encodes them as one document on Close.
type StructuredEmitter struct {
	w       io.Writer
	encode  func(io.Writer, []resource.Record) error
	records []resource.Record
}

// Emit buffers the record.
func (e *StructuredEmitter) Emit(rec resource.Record) error {
	e.records = append(e.records, rec)
	return nil
}

// Close encodes every buffered record. An empty listing encodes as an empty list.
func (e *StructuredEmitter) Close() error {
	records := e.records
	if records == nil {
		records = []resource.Record{}
	}
	return e.encode(e.w, records)
}

func encodeJSON(w io.Writer, records []resource.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func encodeYAML(w io.Writer, records []resource.Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
