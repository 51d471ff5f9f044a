package commands

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/meme-go/meme/pkg/log"
)

// Selector holds the event selection flags shared by view, filter and
// export. Empty fields select everything.
type Selector struct {
	ConnID    string
	Model     string
	Path      string
	TimeStart string // RFC3339, inclusive
	TimeEnd   string // RFC3339, exclusive
	Layer     string
	Direction string
	Category  string
}

// Register binds the selector fields to flags on fs.
func (s *Selector) Register(fs *flag.FlagSet) {
	fs.StringVar(&s.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&s.Model, "model", "", "Filter by model name")
	fs.StringVar(&s.Path, "path", "", "Filter by table path")
	fs.StringVar(&s.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&s.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&s.Layer, "layer", "", "Filter by layer (transport, wire, service)")
	fs.StringVar(&s.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&s.Category, "category", "", "Filter by category (message, control, state, error)")
}

// Filter converts the selector into a reader filter.
func (s Selector) Filter() (log.Filter, error) {
	f := log.Filter{ConnectionID: s.ConnID, Model: s.Model, Path: s.Path}

	var err error
	if f.TimeStart, err = parseTime("time-start", s.TimeStart); err != nil {
		return f, err
	}
	if f.TimeEnd, err = parseTime("time-end", s.TimeEnd); err != nil {
		return f, err
	}
	if f.Layer, err = parseEnum("layer", s.Layer, log.LayerTransport, log.LayerWire, log.LayerService); err != nil {
		return f, err
	}
	if f.Direction, err = parseEnum("direction", s.Direction, log.DirectionIn, log.DirectionOut); err != nil {
		return f, err
	}
	f.Category, err = parseEnum("category", s.Category,
		log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError)
	return f, err
}

func parseTime(flagName, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", flagName, err)
	}
	return &t, nil
}

// parseEnum matches s case-insensitively against the names of values. An
// empty s selects nothing and returns nil.
func parseEnum[T fmt.Stringer](flagName, s string, values ...T) (*T, error) {
	if s == "" {
		return nil, nil
	}
	names := make([]string, len(values))
	for i, v := range values {
		if strings.EqualFold(s, v.String()) {
			return &v, nil
		}
		names[i] = strings.ToLower(v.String())
	}
	return nil, fmt.Errorf("invalid %s: %s (must be one of %s)", flagName, s, strings.Join(names, ", "))
}
