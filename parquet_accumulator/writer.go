package parquet_accumulator

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/xitongsys/parquet-go/writer"
)

// Writer streams dictionary rows into a parquet file laid out by an accumulator.
type Writer struct {
	pw      *writer.JSONWriter
	columns []Column
	rows    int64
}

func NewWriter(pa ParquetSchemaAccumulator, w io.Writer) (*Writer, error) {
	schema, err := pa.GetSchemaString()
	if err != nil {
		return nil, err
	}
	pw, err := writer.NewJSONWriterFromWriter(schema, w, 4)
	if err != nil {
		return nil, fmt.Errorf("error in writer.NewJSONWriterFromWriter: %w", err)
	}
	return &Writer{pw: pw, columns: pa.Columns()}, nil
}

// WriteBlock writes every row of b. The first column is the id, the rest map to the
// block's attribute columns in order.
func (w *Writer) WriteBlock(b *dictionary.Block) error {
	if err := b.Validate(len(w.columns) - 1); err != nil {
		return err
	}
	for i, id := range b.IDs {
		row := make(map[string]any, len(w.columns))
		row[w.columns[0].Name] = id
		for c, col := range w.columns[1:] {
			cell := b.Columns[c][i]
			if cell == nil {
				continue
			}
			v, err := col.Type.Coerce(cell)
			if err != nil {
				return fmt.Errorf("error converting column '%s' of id %d: %w", col.Name, id, err)
			}
			row[col.Name] = v
		}
		jsonBytes, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("error in json.Marshal: %w", err)
		}
		if err = w.pw.Write(string(jsonBytes)); err != nil {
			return fmt.Errorf("error in JSONWriter.Write: %w", err)
		}
		w.rows++
	}
	return nil
}

func (w *Writer) Rows() int64 {
	return w.rows
}

// Close flushes the footer, the underlying io.Writer is left open.
func (w *Writer) Close() error {
	if err := w.pw.WriteStop(); err != nil {
		return fmt.Errorf("error in JSONWriter.WriteStop: %w", err)
	}
	return nil
}
