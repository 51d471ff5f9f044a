package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/wire"
)

// slot holds one cached table. Readers load the pointer without locking;
// mu serialises fetches so that a miss fetches once.
type slot[T any] struct {
	mu  sync.Mutex
	ptr atomic.Pointer[T]
}

// Cache holds the R-matrix and Twiss tables of one model. Each table is
// replaced wholesale on fetch, and a failed fetch leaves the previous table
// in place. Refreshing one table never blocks readers of the other.
type Cache struct {
	fetcher   Fetcher
	key       Key
	noCaching bool
	logger    *slog.Logger
	protocol  log.Logger

	rmat  slot[RmatTable]
	twiss slot[TwissTable]
}

// NewCache creates an empty cache. With noCaching set every read fetches.
func NewCache(fetcher Fetcher, key Key, noCaching bool, logger *slog.Logger, protocol log.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		fetcher:   fetcher,
		key:       key,
		noCaching: noCaching,
		logger:    logger,
		protocol:  protocol,
	}
}

// Key returns the model key the cache fetches.
func (c *Cache) Key() Key { return c.key }

// RmatTable returns the R-matrix table, fetching it on a miss, when force is
// set or when caching is disabled.
func (c *Cache) RmatTable(ctx context.Context, force bool) (*RmatTable, error) {
	return load(ctx, c, &c.rmat, TableRmat, force, DecodeRmatTable, (*RmatTable).Fingerprint)
}

// TwissTable returns the Twiss table, fetching it on a miss, when force is
// set or when caching is disabled.
func (c *Cache) TwissTable(ctx context.Context, force bool) (*TwissTable, error) {
	return load(ctx, c, &c.twiss, TableTwiss, force, DecodeTwissTable, (*TwissTable).Fingerprint)
}

// Invalidate drops both tables. The next read fetches again.
func (c *Cache) Invalidate() {
	c.rmat.mu.Lock()
	c.rmat.ptr.Store(nil)
	c.rmat.mu.Unlock()

	c.twiss.mu.Lock()
	c.twiss.ptr.Store(nil)
	c.twiss.mu.Unlock()
}

func load[T any](
	ctx context.Context,
	c *Cache,
	s *slot[T],
	kind TableKind,
	force bool,
	decode func(*wire.Table) (*T, error),
	fingerprint func(*T) uint64,
) (*T, error) {
	reuse := !force && !c.noCaching
	if reuse {
		if t := s.ptr.Load(); t != nil {
			return t, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have filled the slot while we waited.
	if reuse {
		if t := s.ptr.Load(); t != nil {
			return t, nil
		}
	}

	start := time.Now()
	raw, err := c.fetcher.Fetch(ctx, kind, c.key)
	if err != nil {
		c.logFetchError(kind, err)
		return nil, &FetchError{Kind: kind, Key: c.key, Err: err}
	}
	t, err := decode(raw)
	if err != nil {
		c.logFetchError(kind, err)
		return nil, &FetchError{Kind: kind, Key: c.key, Err: err}
	}

	prev := s.ptr.Swap(t)
	var prevFP uint64
	if prev != nil {
		prevFP = fingerprint(prev)
	}
	c.logReplaced(kind, prev != nil, prevFP, fingerprint(t), raw.Rows, time.Since(start))
	return t, nil
}

func (c *Cache) logReplaced(kind TableKind, hadPrev bool, prevFP, newFP uint64, rows int, took time.Duration) {
	changed := !hadPrev || prevFP != newFP
	c.logger.Debug("model table fetched",
		slog.String("model", c.key.String()),
		slog.String("table", kind.String()),
		slog.Int("rows", rows),
		slog.String("fingerprint", fmt.Sprintf("%016x", newFP)),
		slog.Bool("changed", changed),
		slog.Duration("took", took))

	if c.protocol == nil {
		return
	}
	ev := &log.StateChangeEvent{
		Entity:   log.StateEntityTable,
		NewState: fmt.Sprintf("%016x", newFP),
		Reason:   "fetched",
	}
	if hadPrev {
		ev.OldState = fmt.Sprintf("%016x", prevFP)
		if !changed {
			ev.Reason = "unchanged"
		}
	}
	c.protocol.Log(log.Event{
		Timestamp:   time.Now(),
		Layer:       log.LayerService,
		Category:    log.CategoryState,
		Model:       c.key.ModelName,
		Path:        c.key.Path(kind),
		StateChange: ev,
	})
}

func (c *Cache) logFetchError(kind TableKind, err error) {
	c.logger.Warn("model table fetch failed",
		slog.String("model", c.key.String()),
		slog.String("table", kind.String()),
		slog.Any("error", err))

	if c.protocol == nil {
		return
	}
	c.protocol.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		Model:     c.key.ModelName,
		Path:      c.key.Path(kind),
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: err.Error(),
			Context: "fetch " + kind.String(),
		},
	})
}
