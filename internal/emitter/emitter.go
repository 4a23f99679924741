// Package emitter renders listed EC2 records in the requested output format.
package emitter

import (
	"fmt"
	"io"
	"strings"

	"github.com/yairfalse/shotty/pkg/resource"
)

// Supported output formats.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formats lists every supported output format.
var Formats = []string{FormatText, FormatTable, FormatJSON, FormatYAML}

// Emitter outputs records to a writer.
type Emitter interface {
	// Emit writes or buffers one record.
	Emit(rec resource.Record) error

	// Close flushes buffered output.
	Close() error
}

// New creates an emitter for the given format.
func New(w io.Writer, format string) (Emitter, error) {
	switch format {
	case "", FormatText:
		return &TextEmitter{w: w}, nil
	case FormatTable:
		return NewTableEmitter(w), nil
	case FormatJSON:
		return &StructuredEmitter{w: w, encode: encodeJSON}, nil
	case FormatYAML:
		return &StructuredEmitter{w: w, encode: encodeYAML}, nil
	default:
		return nil, fmt.Errorf("invalid output format: %s (must be one of: %s)",
			format, strings.Join(Formats, ", "))
	}
}

// TextEmitter prints one comma separated line per record as it arrives.
type TextEmitter struct {
	w io.Writer
}

// Emit writes the record immediately.
func (e *TextEmitter) Emit(rec resource.Record) error {
	_, err := fmt.Fprintln(e.w, strings.Join(rec.Fields(), ", "))
	return err
}

// Close is a no-op.
func (e *TextEmitter) Close() error {
	return nil
}
