package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverTable(t *testing.T) *RmatTable {
	t.Helper()
	tbl, err := NewRmatTable([]RmatRow{
		{Ordinal: 0, Element: "BEGINNING", Device: "", S: 0, R: Identity()},
		{Ordinal: 1, Element: "QE01", Device: "QUAD:IN20:121", S: 1, R: Identity()},
		{Ordinal: 2, Element: "QM01#1", Device: "QUAD:IN20:151", S: 2, R: Identity()},
		{Ordinal: 3, Element: "QM01#2", Device: "QUAD:IN20:151", S: 2.1, R: Identity()},
		{Ordinal: 4, Element: "BPM1", Device: "BPMS:IN20:221", S: 3, R: Identity()},
		{Ordinal: 5, Element: "DUP", Device: "X:DUP", S: 4, R: Identity()},
		{Ordinal: 6, Element: "DUP", Device: "X:DUP", S: 5, R: Identity()},
		{Ordinal: 7, Element: "DUP", Device: "X:DUP", S: 6, R: Identity()},
		{Ordinal: 8, Element: "WEIRD#1", Device: "W", S: 7, R: Identity()},
		{Ordinal: 9, Element: "WEIRD#1", Device: "W", S: 8, R: Identity()},
		{Ordinal: 10, Element: "SOL1A", Device: "SOLN:IN20:121", S: 9, R: Identity()},
		{Ordinal: 11, Element: "SOL1B", Device: "SOLN:IN20:121", S: 9.2, R: Identity()},
	})
	require.NoError(t, err)
	return tbl
}

func TestResolve(t *testing.T) {
	tbl := resolverTable(t)

	tests := []struct {
		name  string
		input string
		half  Half
		want  int
	}{
		{"device name", "QUAD:IN20:121", FirstHalf, 1},
		{"element name", "QE01", FirstHalf, 1},
		{"split device first half", "QUAD:IN20:151", FirstHalf, 2},
		{"split device second half", "QUAD:IN20:151", SecondHalf, 3},
		{"split element base name", "QM01", SecondHalf, 3},
		{"exact split element name", "QM01#2", FirstHalf, 3},
		{"start of machine", "BEGINNING", FirstHalf, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, err := resolve(tbl, []string{tt.input}, tt.half, false, nil)
			require.NoError(t, err)
			require.Len(t, refs, 1)
			assert.True(t, refs[0].ok)
			assert.Equal(t, tt.want, refs[0].index)
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	tbl := resolverTable(t)

	_, err := resolve(tbl, []string{"QE01", "NOPE"}, FirstHalf, false, nil)
	var nf *DeviceNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "NOPE", nf.Name)
	assert.Equal(t, TableRmat, nf.Table)
	assert.True(t, errors.Is(err, ErrDeviceNotFound))

	refs, err := resolve(tbl, []string{"QE01", "NOPE", "BPM1"}, FirstHalf, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []rowRef{{index: 1, ok: true}, {}, {index: 4, ok: true}}, refs)
}

func TestResolveAmbiguous(t *testing.T) {
	tbl := resolverTable(t)

	_, err := resolve(tbl, []string{"X:DUP"}, FirstHalf, true, nil)
	var ad *AmbiguousDeviceError
	require.True(t, errors.As(err, &ad))
	assert.Len(t, ad.Elements, 3)

	// Both rows carry the #1 suffix, so neither half is unique.
	_, err = resolve(tbl, []string{"W"}, FirstHalf, true, nil)
	assert.True(t, errors.Is(err, ErrAmbiguousSplitElement))
	_, err = resolve(tbl, []string{"W"}, SecondHalf, true, nil)
	assert.True(t, errors.Is(err, ErrAmbiguousSplitElement))

	// Two rows share the device but neither carries a half suffix.
	for _, half := range []Half{FirstHalf, SecondHalf} {
		_, err = resolve(tbl, []string{"SOLN:IN20:121"}, half, true, nil)
		var as *AmbiguousSplitElementError
		require.True(t, errors.As(err, &as))
		assert.Equal(t, "SOLN:IN20:121", as.Name)
		assert.Equal(t, half, as.Half)
		assert.Equal(t, []string{"SOL1A", "SOL1B"}, as.Elements)
	}
}

func TestParseHalf(t *testing.T) {
	for in, want := range map[string]Half{
		"":            FirstHalf,
		"first":       FirstHalf,
		"2":           SecondHalf,
		"SECOND_HALF": SecondHalf,
	} {
		got, err := ParseHalf(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseHalf("third")
	assert.Error(t, err)
	assert.Equal(t, "#2", SecondHalf.Suffix())
}
