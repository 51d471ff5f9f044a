package model

import (
	"context"
	"time"

	"github.com/meme-go/meme/pkg/wire"
)

// Fetcher retrieves one raw model table from the model service.
type Fetcher interface {
	Fetch(ctx context.Context, kind TableKind, key Key) (*wire.Table, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, kind TableKind, key Key) (*wire.Table, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, kind TableKind, key Key) (*wire.Table, error) {
	return f(ctx, kind, key)
}

// TableGetter issues one table request. *interaction.Client implements it.
type TableGetter interface {
	Get(ctx context.Context, scheme, path string, query map[string]string) (*wire.Table, error)
}

// RPCFetcher fetches tables over a TableGetter using the model service path
// layout.
type RPCFetcher struct {
	getter  TableGetter
	timeout time.Duration
}

// NewRPCFetcher creates a fetcher. A zero timeout leaves the deadline to the
// caller's context and the getter.
func NewRPCFetcher(getter TableGetter, timeout time.Duration) *RPCFetcher {
	return &RPCFetcher{getter: getter, timeout: timeout}
}

// Fetch implements Fetcher.
func (f *RPCFetcher) Fetch(ctx context.Context, kind TableKind, key Key) (*wire.Table, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return f.getter.Get(ctx, wire.DefaultScheme, key.Path(kind), nil)
}
