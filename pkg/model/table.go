package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/meme-go/meme/pkg/wire"
)

// Wire column names shared by both tables.
const (
	ColOrdinal       = "ORDINAL"
	ColElementName   = "ELEMENT_NAME"
	ColDeviceName    = "EPICS_CHANNEL_ACCESS_NAME"
	ColPositionIndex = "POSITION_INDEX"
	ColZPosition     = "Z_POSITION"
)

// rmatColumns are R11..R66 in row major order.
var rmatColumns = func() []string {
	cols := make([]string, 0, 36)
	for i := 1; i <= 6; i++ {
		for j := 1; j <= 6; j++ {
			cols = append(cols, fmt.Sprintf("R%d%d", i, j))
		}
	}
	return cols
}()

// RmatRow is one element of the R-matrix table.
type RmatRow struct {
	Ordinal int64  `yaml:"ordinal"`
	Element string `yaml:"element"`
	Device  string `yaml:"device"`
	// S is the cumulative beamline position of the element.
	S float64 `yaml:"s"`
	// R is the transfer matrix from the start of the machine to the element.
	R Matrix `yaml:"r"`
}

// TwissRow is one element of the Twiss table.
type TwissRow struct {
	Ordinal int64  `yaml:"ordinal"`
	Element string `yaml:"element"`
	Device  string `yaml:"device"`
	Twiss   `yaml:",inline"`
}

// nameIndex maps every name a row answers to onto row indices, in row order.
// A row answers to its device name, its element name, and its element name
// with a trailing #1 or #2 removed.
type nameIndex struct {
	rows map[string][]int
}

func newNameIndex(n int, element, device func(i int) string) nameIndex {
	idx := nameIndex{rows: make(map[string][]int, 2*n)}
	for i := range n {
		el, dev := element(i), device(i)
		keys := []string{el}
		if dev != "" && dev != el {
			keys = append(keys, dev)
		}
		if base, ok := splitBase(el); ok && base != dev {
			keys = append(keys, base)
		}
		for _, k := range keys {
			idx.rows[k] = append(idx.rows[k], i)
		}
	}
	return idx
}

func (x nameIndex) lookup(name string) []int {
	return x.rows[name]
}

// splitBase returns the element name without a split-half suffix.
func splitBase(element string) (string, bool) {
	for _, h := range []Half{FirstHalf, SecondHalf} {
		if base, ok := strings.CutSuffix(element, h.Suffix()); ok && base != "" {
			return base, true
		}
	}
	return "", false
}

// RmatTable is an immutable R-matrix table. Accessors return copies.
type RmatTable struct {
	rows        []RmatRow
	index       nameIndex
	fingerprint uint64
	fetchedAt   time.Time
}

// NewRmatTable builds a table from rows. The rows are copied.
func NewRmatTable(rows []RmatRow) (*RmatTable, error) {
	t := &RmatTable{rows: slices.Clone(rows), fetchedAt: time.Now()}
	t.index = newNameIndex(len(t.rows),
		func(i int) string { return t.rows[i].Element },
		func(i int) string { return t.rows[i].Device })
	fp, err := wire.Fingerprint(t.rows)
	if err != nil {
		return nil, err
	}
	t.fingerprint = fp
	return t, nil
}

// Len returns the number of rows.
func (t *RmatTable) Len() int { return len(t.rows) }

// Row returns a copy of row i.
func (t *RmatTable) Row(i int) RmatRow { return t.rows[i] }

// Rows returns a copy of all rows.
func (t *RmatTable) Rows() []RmatRow { return slices.Clone(t.rows) }

// Fingerprint identifies the table contents.
func (t *RmatTable) Fingerprint() uint64 { return t.fingerprint }

// FetchedAt is when the table was built.
func (t *RmatTable) FetchedAt() time.Time { return t.fetchedAt }

func (t *RmatTable) lookup(name string) []int { return t.index.lookup(name) }
func (t *RmatTable) elementName(i int) string { return t.rows[i].Element }
func (t *RmatTable) kind() TableKind          { return TableRmat }

// Encode converts the table to its wire form.
func (t *RmatTable) Encode() (*wire.Table, error) {
	n := len(t.rows)
	out := wire.NewTable(n)

	ordinals := make([]int64, n)
	elements := make([]string, n)
	devices := make([]string, n)
	zpos := make([]float64, n)
	r := make([][]float64, 36)
	for k := range r {
		r[k] = make([]float64, n)
	}
	for i, row := range t.rows {
		ordinals[i] = row.Ordinal
		elements[i] = row.Element
		devices[i] = row.Device
		zpos[i] = row.S
		for k, v := range row.R.Elements() {
			r[k][i] = v
		}
	}

	if err := encodeIdentity(out, ordinals, elements, devices); err != nil {
		return nil, err
	}
	if err := out.SetFloats(ColZPosition, zpos); err != nil {
		return nil, err
	}
	for k, col := range rmatColumns {
		if err := out.SetFloats(col, r[k]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeRmatTable converts a fetched wire table. Errors are
// *MalformedTableError.
func DecodeRmatTable(in *wire.Table) (*RmatTable, error) {
	malformed := func(err error) error { return &MalformedTableError{Kind: TableRmat, Err: err} }

	if in == nil {
		return nil, malformed(fmt.Errorf("no table"))
	}
	ordinals, elements, devices, err := decodeIdentity(in)
	if err != nil {
		return nil, malformed(err)
	}
	zpos, err := in.Floats(ColZPosition)
	if err != nil {
		return nil, malformed(err)
	}

	r := make([][]float64, len(rmatColumns))
	for k, col := range rmatColumns {
		if r[k], err = in.Floats(col); err != nil {
			return nil, malformed(err)
		}
	}

	rows := make([]RmatRow, in.Rows)
	for i := range rows {
		rows[i] = RmatRow{
			Ordinal: ordinals[i],
			Element: elements[i],
			Device:  devices[i],
			S:       zpos[i],
		}
		for k := range r {
			rows[i].R[k/6][k%6] = r[k][i]
		}
	}

	t, err := NewRmatTable(rows)
	if err != nil {
		return nil, malformed(err)
	}
	return t, nil
}

// TwissTable is an immutable Twiss table. Accessors return copies.
type TwissTable struct {
	rows        []TwissRow
	index       nameIndex
	fingerprint uint64
	fetchedAt   time.Time
}

// NewTwissTable builds a table from rows. The rows are copied.
func NewTwissTable(rows []TwissRow) (*TwissTable, error) {
	t := &TwissTable{rows: slices.Clone(rows), fetchedAt: time.Now()}
	t.index = newNameIndex(len(t.rows),
		func(i int) string { return t.rows[i].Element },
		func(i int) string { return t.rows[i].Device })
	fp, err := wire.Fingerprint(t.rows)
	if err != nil {
		return nil, err
	}
	t.fingerprint = fp
	return t, nil
}

// Len returns the number of rows.
func (t *TwissTable) Len() int { return len(t.rows) }

// Row returns a copy of row i.
func (t *TwissTable) Row(i int) TwissRow { return t.rows[i] }

// Rows returns a copy of all rows.
func (t *TwissTable) Rows() []TwissRow { return slices.Clone(t.rows) }

// Fingerprint identifies the table contents.
func (t *TwissTable) Fingerprint() uint64 { return t.fingerprint }

// FetchedAt is when the table was built.
func (t *TwissTable) FetchedAt() time.Time { return t.fetchedAt }

func (t *TwissTable) lookup(name string) []int { return t.index.lookup(name) }
func (t *TwissTable) elementName(i int) string { return t.rows[i].Element }
func (t *TwissTable) kind() TableKind          { return TableTwiss }

// Encode converts the table to its wire form.
func (t *TwissTable) Encode() (*wire.Table, error) {
	n := len(t.rows)
	out := wire.NewTable(n)

	ordinals := make([]int64, n)
	elements := make([]string, n)
	devices := make([]string, n)
	attrs := make([][]float64, len(allAttributes))
	for k := range attrs {
		attrs[k] = make([]float64, n)
	}
	for i, row := range t.rows {
		ordinals[i] = row.Ordinal
		elements[i] = row.Element
		devices[i] = row.Device
		for k, a := range allAttributes {
			attrs[k][i] = row.Get(a)
		}
	}

	if err := encodeIdentity(out, ordinals, elements, devices); err != nil {
		return nil, err
	}
	for k, a := range allAttributes {
		if err := out.SetFloats(a.Column(), attrs[k]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeTwissTable converts a fetched wire table. Errors are
// *MalformedTableError.
func DecodeTwissTable(in *wire.Table) (*TwissTable, error) {
	malformed := func(err error) error { return &MalformedTableError{Kind: TableTwiss, Err: err} }

	if in == nil {
		return nil, malformed(fmt.Errorf("no table"))
	}
	ordinals, elements, devices, err := decodeIdentity(in)
	if err != nil {
		return nil, malformed(err)
	}

	attrs := make([][]float64, len(allAttributes))
	for k, a := range allAttributes {
		if attrs[k], err = in.Floats(a.Column()); err != nil {
			return nil, malformed(err)
		}
	}

	rows := make([]TwissRow, in.Rows)
	for i := range rows {
		rows[i] = TwissRow{
			Ordinal: ordinals[i],
			Element: elements[i],
			Device:  devices[i],
		}
		for k, a := range allAttributes {
			rows[i].set(a, attrs[k][i])
		}
	}

	t, err := NewTwissTable(rows)
	if err != nil {
		return nil, malformed(err)
	}
	return t, nil
}

func encodeIdentity(out *wire.Table, ordinals []int64, elements, devices []string) error {
	if err := out.SetInts(ColOrdinal, ordinals); err != nil {
		return err
	}
	if err := out.SetStrings(ColElementName, elements); err != nil {
		return err
	}
	return out.SetStrings(ColDeviceName, devices)
}

// decodeIdentity reads the columns both tables share. POSITION_INDEX is
// accepted but not used: split halves are told apart by element suffix.
func decodeIdentity(in *wire.Table) (ordinals []int64, elements, devices []string, err error) {
	if err = in.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if ordinals, err = in.Ints(ColOrdinal); err != nil {
		return nil, nil, nil, err
	}
	if elements, err = in.Strings(ColElementName); err != nil {
		return nil, nil, nil, err
	}
	if devices, err = in.Strings(ColDeviceName); err != nil {
		return nil, nil, nil, err
	}
	return ordinals, elements, devices, nil
}
