package model

import (
	"context"
	"errors"
	"log/slog"

	"github.com/meme-go/meme/pkg/log"
)

// Config configures a Model.
type Config struct {
	// Key selects the model on the service.
	Key Key

	// NoCaching fetches the tables again on every call.
	NoCaching bool

	// Initialize fetches both tables in New.
	Initialize bool

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives table replacement events. Optional.
	ProtocolLogger log.Logger
}

// Model answers transfer matrix, position and Twiss queries for one machine
// model. It is safe for concurrent use.
type Model struct {
	cache  *Cache
	logger *slog.Logger
}

// New creates a model backed by fetcher. With cfg.Initialize set both tables
// are fetched before New returns.
func New(ctx context.Context, fetcher Fetcher, cfg Config) (*Model, error) {
	if fetcher == nil {
		return nil, errors.New("model: fetcher is required")
	}
	if err := cfg.Key.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("model", cfg.Key.String()))

	m := &Model{
		cache:  NewCache(fetcher, cfg.Key, cfg.NoCaching, logger, cfg.ProtocolLogger),
		logger: logger,
	}
	if cfg.Initialize {
		if err := m.RefreshAll(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Key returns the model key.
func (m *Model) Key() Key { return m.cache.Key() }

// Cache returns the table cache backing the model.
func (m *Model) Cache() *Cache { return m.cache }

// RefreshRmatData fetches the R-matrix table again.
func (m *Model) RefreshRmatData(ctx context.Context) error {
	_, err := m.cache.RmatTable(ctx, true)
	return err
}

// RefreshTwissData fetches the Twiss table again.
func (m *Model) RefreshTwissData(ctx context.Context) error {
	_, err := m.cache.TwissTable(ctx, true)
	return err
}

// RefreshAll fetches both tables again. Both are attempted even if the first
// fails.
func (m *Model) RefreshAll(ctx context.Context) error {
	return errors.Join(m.RefreshRmatData(ctx), m.RefreshTwissData(ctx))
}
