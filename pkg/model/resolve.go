package model

import (
	"fmt"
	"log/slog"
	"strings"
)

// Half selects one half of a split element.
type Half uint8

const (
	// FirstHalf selects the element ending in #1. It is the default.
	FirstHalf Half = iota
	// SecondHalf selects the element ending in #2.
	SecondHalf
)

// Suffix returns the element-name suffix of the half.
func (h Half) Suffix() string {
	if h == SecondHalf {
		return "#2"
	}
	return "#1"
}

// String returns the half name.
func (h Half) String() string {
	switch h {
	case FirstHalf:
		return "FIRST_HALF"
	case SecondHalf:
		return "SECOND_HALF"
	default:
		return fmt.Sprintf("Half(%d)", uint8(h))
	}
}

// ParseHalf accepts first/second, 1/2 or the String form, case-insensitively.
func ParseHalf(s string) (Half, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "1", "FIRST", "FIRST_HALF":
		return FirstHalf, nil
	case "2", "SECOND", "SECOND_HALF":
		return SecondHalf, nil
	default:
		return FirstHalf, fmt.Errorf("unknown split half %q", s)
	}
}

// indexedTable is what the resolver needs from either table.
type indexedTable interface {
	lookup(name string) []int
	elementName(i int) string
	kind() TableKind
}

// rowRef is a resolved row, or an unresolved name when ok is false.
type rowRef struct {
	index int
	ok    bool
}

// resolve maps every name to a row of t. Names matching no row are left
// unresolved when ignoreBadNames is set; every other failure is returned.
func resolve(t indexedTable, names []string, half Half, ignoreBadNames bool, logger *slog.Logger) ([]rowRef, error) {
	refs := make([]rowRef, len(names))
	for i, name := range names {
		ref, err := resolveOne(t, name, half)
		if err != nil {
			return nil, err
		}
		if !ref.ok {
			if !ignoreBadNames {
				return nil, &DeviceNotFoundError{Name: name, Table: t.kind()}
			}
			if logger != nil {
				logger.Warn("device not found in machine model, using NaN",
					slog.String("device", name),
					slog.String("table", t.kind().String()))
			}
		}
		refs[i] = ref
	}
	return refs, nil
}

func resolveOne(t indexedTable, name string, half Half) (rowRef, error) {
	matches := t.lookup(name)
	switch len(matches) {
	case 0:
		return rowRef{}, nil
	case 1:
		return rowRef{index: matches[0], ok: true}, nil
	case 2:
		suffix := half.Suffix()
		picked := -1
		for _, m := range matches {
			if strings.HasSuffix(t.elementName(m), suffix) {
				if picked >= 0 {
					picked = -2
					break
				}
				picked = m
			}
		}
		if picked < 0 {
			return rowRef{}, &AmbiguousSplitElementError{
				Name:     name,
				Half:     half,
				Elements: elementNames(t, matches),
			}
		}
		return rowRef{index: picked, ok: true}, nil
	default:
		return rowRef{}, &AmbiguousDeviceError{Name: name, Elements: elementNames(t, matches)}
	}
}

func elementNames(t indexedTable, rows []int) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = t.elementName(r)
	}
	return out
}
