package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrFetch                 = errors.New("model fetch failed")
	ErrDeviceNotFound        = errors.New("device not found in machine model")
	ErrAmbiguousSplitElement = errors.New("ambiguous split element")
	ErrAmbiguousDevice       = errors.New("ambiguous device")
	ErrSingularMatrix        = errors.New("singular transfer matrix")
	ErrLengthMismatch        = errors.New("device list length mismatch")
	ErrUnknownAttribute      = errors.New("unknown twiss attribute")
	ErrMalformedTable        = errors.New("malformed model table")
	ErrNoDevices             = errors.New("no devices requested")
)

// FetchError reports a failed table fetch. The cache keeps its previous
// contents when this is returned.
type FetchError struct {
	Kind TableKind
	Key  Key
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s table for %s: %v", e.Kind, e.Key, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// DeviceNotFoundError reports a name that matched no row.
type DeviceNotFoundError struct {
	Name  string
	Table TableKind
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device %s not found in the %s table of the machine model", e.Name, e.Table)
}

func (e *DeviceNotFoundError) Is(target error) bool { return target == ErrDeviceNotFound }

// AmbiguousSplitElementError reports a name matching two rows where the
// requested half does not pick exactly one of them.
type AmbiguousSplitElementError struct {
	Name     string
	Half     Half
	Elements []string
}

func (e *AmbiguousSplitElementError) Error() string {
	return fmt.Sprintf("%s matches split elements %s but not exactly one %s half",
		e.Name, strings.Join(e.Elements, ", "), e.Half)
}

func (e *AmbiguousSplitElementError) Is(target error) bool { return target == ErrAmbiguousSplitElement }

// AmbiguousDeviceError reports a name matching more than two rows. The model
// data is inconsistent.
type AmbiguousDeviceError struct {
	Name     string
	Elements []string
}

func (e *AmbiguousDeviceError) Error() string {
	return fmt.Sprintf("%s matches %d rows (%s)", e.Name, len(e.Elements), strings.Join(e.Elements, ", "))
}

func (e *AmbiguousDeviceError) Is(target error) bool { return target == ErrAmbiguousDevice }

// SingularMatrixError reports an R-matrix that cannot be inverted.
type SingularMatrixError struct {
	Name string
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("R-matrix of %s is singular", e.Name)
}

func (e *SingularMatrixError) Is(target error) bool { return target == ErrSingularMatrix }

// LengthMismatchError reports two device lists longer than one with
// different lengths.
type LengthMismatchError struct {
	From, To int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("from list has %d devices and to list has %d; lengths must match when both exceed one", e.From, e.To)
}

func (e *LengthMismatchError) Is(target error) bool { return target == ErrLengthMismatch }

// UnknownAttributeError reports an unsupported Twiss attribute name.
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown twiss attribute %q", e.Name)
}

func (e *UnknownAttributeError) Is(target error) bool { return target == ErrUnknownAttribute }

// MalformedTableError reports a fetched table that does not have the expected
// shape.
type MalformedTableError struct {
	Kind TableKind
	Err  error
}

func (e *MalformedTableError) Error() string {
	return fmt.Sprintf("malformed %s table: %v", e.Kind, e.Err)
}

func (e *MalformedTableError) Unwrap() []error { return []error{ErrMalformedTable, e.Err} }
