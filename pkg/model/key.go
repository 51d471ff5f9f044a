package model

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSource is the model source used when Key.Source is empty.
const DefaultSource = "BMAD"

// TableKind selects one of the two model tables.
type TableKind uint8

const (
	// TableRmat is the R-matrix table.
	TableRmat TableKind = iota
	// TableTwiss is the Twiss table.
	TableTwiss
)

// String returns the path component for the table kind.
func (k TableKind) String() string {
	switch k {
	case TableRmat:
		return "RMAT"
	case TableTwiss:
		return "TWISS"
	default:
		return "UNKNOWN"
	}
}

// ErrEmptyModelName is returned by Key.Validate.
var ErrEmptyModelName = errors.New("model name is required")

// Key identifies one model configuration on the model service.
type Key struct {
	// ModelName is the beamline model, e.g. CU_HXR.
	ModelName string `mapstructure:"model_name" yaml:"model_name"`

	// Source is the modelling code that produced the tables. Defaults to BMAD.
	Source string `mapstructure:"source" yaml:"source"`

	// UseDesign selects the design model instead of the live one.
	UseDesign bool `mapstructure:"use_design" yaml:"use_design"`
}

// Validate checks that the key names a model.
func (k Key) Validate() error {
	if k.ModelName == "" {
		return ErrEmptyModelName
	}
	if strings.Contains(k.ModelName, ":") || strings.Contains(k.Source, ":") {
		return fmt.Errorf("model name and source must not contain ':' (%q, %q)", k.ModelName, k.Source)
	}
	return nil
}

// Mode returns LIVE or DESIGN.
func (k Key) Mode() string {
	if k.UseDesign {
		return "DESIGN"
	}
	return "LIVE"
}

func (k Key) source() string {
	if k.Source == "" {
		return DefaultSource
	}
	return strings.ToUpper(k.Source)
}

// Path returns the service path for one table of this model:
// SOURCE:SYS0:1:MODEL:LIVE|DESIGN:RMAT|TWISS.
func (k Key) Path(kind TableKind) string {
	return fmt.Sprintf("%s:SYS0:1:%s:%s:%s", k.source(), k.ModelName, k.Mode(), kind)
}

// String returns a short human-readable form of the key.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.source(), k.ModelName, k.Mode())
}

// ParsePath is the inverse of Key.Path.
func ParsePath(path string) (Key, TableKind, error) {
	parts := strings.Split(path, ":")
	if len(parts) != 6 || parts[1] != "SYS0" || parts[2] != "1" {
		return Key{}, 0, fmt.Errorf("malformed model path %q", path)
	}

	key := Key{Source: parts[0], ModelName: parts[3]}
	switch parts[4] {
	case "LIVE":
	case "DESIGN":
		key.UseDesign = true
	default:
		return Key{}, 0, fmt.Errorf("unknown model mode %q in %q", parts[4], path)
	}

	var kind TableKind
	switch parts[5] {
	case "RMAT":
		kind = TableRmat
	case "TWISS":
		kind = TableTwiss
	default:
		return Key{}, 0, fmt.Errorf("unknown table %q in %q", parts[5], path)
	}

	if err := key.Validate(); err != nil {
		return Key{}, 0, fmt.Errorf("%q: %w", path, err)
	}
	return key, kind, nil
}
