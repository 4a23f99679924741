package emitter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/yairfalse/shotty/pkg/resource"
)

// TableEmitter aligns records into columns with a header row.
type TableEmitter struct {
	tw     *tabwriter.Writer
	header bool
}

// NewTableEmitter creates a table emitter writing to w.
func NewTableEmitter(w io.Writer) *TableEmitter {
	return &TableEmitter{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

// Emit buffers the record. The header comes from the first record.
func (e *TableEmitter) Emit(rec resource.Record) error {
	if !e.header {
		if _, err := fmt.Fprintln(e.tw, strings.Join(rec.Header(), "\t")); err != nil {
			return err
		}
		e.header = true
	}
	_, err := fmt.Fprintln(e.tw, strings.Join(rec.TableFields(), "\t"))
	return err
}

// Close flushes the aligned table.
func (e *TableEmitter) Close() error {
	return e.tw.Flush()
}
