package model

import (
	"context"
	"math"
	"strings"
)

// Twiss holds the optics of one element.
type Twiss struct {
	Leff        float64 `yaml:"leff"`
	TotalEnergy float64 `yaml:"total_energy"`
	PsiX        float64 `yaml:"psi_x"`
	BetaX       float64 `yaml:"beta_x"`
	AlphaX      float64 `yaml:"alpha_x"`
	EtaX        float64 `yaml:"eta_x"`
	EtapX       float64 `yaml:"etap_x"`
	PsiY        float64 `yaml:"psi_y"`
	BetaY       float64 `yaml:"beta_y"`
	AlphaY      float64 `yaml:"alpha_y"`
	EtaY        float64 `yaml:"eta_y"`
	EtapY       float64 `yaml:"etap_y"`
}

// NaNTwiss returns a record with every field NaN.
func NaNTwiss() Twiss {
	var t Twiss
	for _, a := range allAttributes {
		t.set(a, math.NaN())
	}
	return t
}

// Attribute names one Twiss field.
type Attribute uint8

const (
	AttrLeff Attribute = iota
	AttrTotalEnergy
	AttrPsiX
	AttrBetaX
	AttrAlphaX
	AttrEtaX
	AttrEtapX
	AttrPsiY
	AttrBetaY
	AttrAlphaY
	AttrEtaY
	AttrEtapY
)

var allAttributes = []Attribute{
	AttrLeff, AttrTotalEnergy,
	AttrPsiX, AttrBetaX, AttrAlphaX, AttrEtaX, AttrEtapX,
	AttrPsiY, AttrBetaY, AttrAlphaY, AttrEtaY, AttrEtapY,
}

var attributeNames = [...]string{
	AttrLeff:        "leff",
	AttrTotalEnergy: "total_energy",
	AttrPsiX:        "psi_x",
	AttrBetaX:       "beta_x",
	AttrAlphaX:      "alpha_x",
	AttrEtaX:        "eta_x",
	AttrEtapX:       "etap_x",
	AttrPsiY:        "psi_y",
	AttrBetaY:       "beta_y",
	AttrAlphaY:      "alpha_y",
	AttrEtaY:        "eta_y",
	AttrEtapY:       "etap_y",
}

// Attributes returns every attribute in table order.
func Attributes() []Attribute {
	return append([]Attribute(nil), allAttributes...)
}

// String returns the lower-case attribute name, e.g. beta_x.
func (a Attribute) String() string {
	if int(a) < len(attributeNames) {
		return attributeNames[a]
	}
	return "unknown"
}

// Column returns the wire column label, e.g. BETA_X.
func (a Attribute) Column() string {
	return strings.ToUpper(a.String())
}

// ParseAttribute accepts the attribute name or its column label.
func ParseAttribute(name string) (Attribute, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, a := range allAttributes {
		if attributeNames[a] == lower {
			return a, nil
		}
	}
	return 0, &UnknownAttributeError{Name: name}
}

// Get returns the value of one attribute.
func (t Twiss) Get(a Attribute) float64 {
	switch a {
	case AttrLeff:
		return t.Leff
	case AttrTotalEnergy:
		return t.TotalEnergy
	case AttrPsiX:
		return t.PsiX
	case AttrBetaX:
		return t.BetaX
	case AttrAlphaX:
		return t.AlphaX
	case AttrEtaX:
		return t.EtaX
	case AttrEtapX:
		return t.EtapX
	case AttrPsiY:
		return t.PsiY
	case AttrBetaY:
		return t.BetaY
	case AttrAlphaY:
		return t.AlphaY
	case AttrEtaY:
		return t.EtaY
	case AttrEtapY:
		return t.EtapY
	default:
		return math.NaN()
	}
}

func (t *Twiss) set(a Attribute, v float64) {
	switch a {
	case AttrLeff:
		t.Leff = v
	case AttrTotalEnergy:
		t.TotalEnergy = v
	case AttrPsiX:
		t.PsiX = v
	case AttrBetaX:
		t.BetaX = v
	case AttrAlphaX:
		t.AlphaX = v
	case AttrEtaX:
		t.EtaX = v
	case AttrEtapX:
		t.EtapX = v
	case AttrPsiY:
		t.PsiY = v
	case AttrBetaY:
		t.BetaY = v
	case AttrAlphaY:
		t.AlphaY = v
	case AttrEtaY:
		t.EtaY = v
	case AttrEtapY:
		t.EtapY = v
	}
}

// Options controls name resolution for the gather operations.
type Options struct {
	// Half picks the half of a split element. Defaults to FirstHalf.
	Half Half
	// IgnoreBadNames yields NaN for names not in the model instead of failing.
	IgnoreBadNames bool
}

// Twiss returns the Twiss record of every name, in order.
func (m *Model) Twiss(ctx context.Context, names []string, opts Options) ([]Twiss, error) {
	t, err := m.cache.TwissTable(ctx, false)
	if err != nil {
		return nil, err
	}
	refs, err := resolve(t, names, opts.Half, opts.IgnoreBadNames, m.logger)
	if err != nil {
		return nil, err
	}
	return gather(refs, NaNTwiss(), func(i int) Twiss { return t.rows[i].Twiss }), nil
}

// TwissOf returns the Twiss record of one name.
func (m *Model) TwissOf(ctx context.Context, name string, opts Options) (Twiss, error) {
	out, err := m.Twiss(ctx, []string{name}, opts)
	if err != nil {
		return Twiss{}, err
	}
	return out[0], nil
}

// TwissAttribute returns one attribute of every name, in order.
func (m *Model) TwissAttribute(ctx context.Context, names []string, attr Attribute, opts Options) ([]float64, error) {
	if int(attr) >= len(attributeNames) {
		return nil, &UnknownAttributeError{Name: attr.String()}
	}
	t, err := m.cache.TwissTable(ctx, false)
	if err != nil {
		return nil, err
	}
	refs, err := resolve(t, names, opts.Half, opts.IgnoreBadNames, m.logger)
	if err != nil {
		return nil, err
	}
	return gather(refs, math.NaN(), func(i int) float64 { return t.rows[i].Get(attr) }), nil
}

// TwissAttributeOf returns one attribute of one name.
func (m *Model) TwissAttributeOf(ctx context.Context, name string, attr Attribute, opts Options) (float64, error) {
	out, err := m.TwissAttribute(ctx, []string{name}, attr, opts)
	if err != nil {
		return math.NaN(), err
	}
	return out[0], nil
}

// ZPositions returns the beamline position of every name, read from the
// R-matrix table.
func (m *Model) ZPositions(ctx context.Context, names []string, opts Options) ([]float64, error) {
	t, err := m.cache.RmatTable(ctx, false)
	if err != nil {
		return nil, err
	}
	refs, err := resolve(t, names, opts.Half, opts.IgnoreBadNames, m.logger)
	if err != nil {
		return nil, err
	}
	return gather(refs, math.NaN(), func(i int) float64 { return t.rows[i].S }), nil
}

// ZPosition returns the beamline position of one name.
func (m *Model) ZPosition(ctx context.Context, name string, opts Options) (float64, error) {
	out, err := m.ZPositions(ctx, []string{name}, opts)
	if err != nil {
		return math.NaN(), err
	}
	return out[0], nil
}

func gather[T any](refs []rowRef, missing T, get func(int) T) []T {
	out := make([]T, len(refs))
	for i, ref := range refs {
		if ref.ok {
			out[i] = get(ref.index)
		} else {
			out[i] = missing
		}
	}
	return out
}
