package wire

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// Table errors.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrColumnLength  = errors.New("column length mismatch")
	ErrColumnType    = errors.New("unexpected column type")
)

// Table is a column-oriented table: labels in order, and for every label one
// CBOR array of exactly Rows values.
//
// CBOR encoding:
//
//	{
//	  1: labels,   // [string]
//	  2: rows,     // uint
//	  3: columns   // {label: [values]}
//	}
type Table struct {
	Labels  []string                   `cbor:"1,keyasint"`
	Rows    int                        `cbor:"2,keyasint"`
	Columns map[string]cbor.RawMessage `cbor:"3,keyasint"`
}

// NewTable creates an empty table that expects columns of length rows.
func NewTable(rows int) *Table {
	return &Table{
		Rows:    rows,
		Columns: make(map[string]cbor.RawMessage),
	}
}

// Has reports whether the table has a column with the given label.
func (t *Table) Has(label string) bool {
	_, ok := t.Columns[label]
	return ok
}

// SetStrings stores a string column.
func (t *Table) SetStrings(label string, values []string) error {
	return t.set(label, values, len(values))
}

// SetFloats stores a float column.
func (t *Table) SetFloats(label string, values []float64) error {
	return t.set(label, values, len(values))
}

// SetInts stores an integer column.
func (t *Table) SetInts(label string, values []int64) error {
	return t.set(label, values, len(values))
}

func (t *Table) set(label string, values any, n int) error {
	if n != t.Rows {
		return fmt.Errorf("%w: column %s has %d values, table has %d rows", ErrColumnLength, label, n, t.Rows)
	}
	data, err := Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode column %s: %w", label, err)
	}
	if t.Columns == nil {
		t.Columns = make(map[string]cbor.RawMessage)
	}
	if _, exists := t.Columns[label]; !exists {
		t.Labels = append(t.Labels, label)
	}
	t.Columns[label] = data
	return nil
}

// Strings decodes a string column.
func (t *Table) Strings(label string) ([]string, error) {
	var out []string
	if err := t.decode(label, &out); err != nil {
		return nil, err
	}
	return out, t.checkLength(label, len(out))
}

// Floats decodes a numeric column as float64. Integer encoded values are
// accepted.
func (t *Table) Floats(label string) ([]float64, error) {
	var out []float64
	if err := t.decode(label, &out); err != nil {
		return nil, err
	}
	return out, t.checkLength(label, len(out))
}

// Ints decodes an integer column. Services that ship integers as doubles are
// accepted as long as every value is integral.
func (t *Table) Ints(label string) ([]int64, error) {
	floats, err := t.Floats(label)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(floats))
	for i, f := range floats {
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: column %s row %d is not an integer (%v)", ErrColumnType, label, i, f)
		}
		out[i] = int64(f)
	}
	return out, nil
}

// Validate checks that every labelled column exists and has Rows values.
func (t *Table) Validate() error {
	if t.Rows < 0 {
		return fmt.Errorf("%w: negative row count %d", ErrColumnLength, t.Rows)
	}
	for _, label := range t.Labels {
		var items []cbor.RawMessage
		if err := t.decode(label, &items); err != nil {
			return err
		}
		if err := t.checkLength(label, len(items)); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		Labels:  slices.Clone(t.Labels),
		Rows:    t.Rows,
		Columns: make(map[string]cbor.RawMessage, len(t.Columns)),
	}
	for k, v := range t.Columns {
		c.Columns[k] = slices.Clone(v)
	}
	return c
}

func (t *Table) decode(label string, v any) error {
	raw, ok := t.Columns[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingColumn, label)
	}
	if err := Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: column %s: %v", ErrColumnType, label, err)
	}
	return nil
}

func (t *Table) checkLength(label string, n int) error {
	if n != t.Rows {
		return fmt.Errorf("%w: column %s has %d values, table has %d rows", ErrColumnLength, label, n, t.Rows)
	}
	return nil
}
