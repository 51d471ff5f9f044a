package model

import (
	"context"
	"log/slog"
)

// RmatOptions controls name resolution for transfer matrices.
type RmatOptions struct {
	FromHalf       Half
	ToHalf         Half
	IgnoreBadNames bool
}

// Rmat returns the transfer matrix for every (from, to) pair.
//
// A list of length one is repeated to match the other list; two longer lists
// must have equal length. An empty from list starts every pair at the start
// of the machine. With an empty to list the from names become the
// destinations and the origin is the start of the machine.
//
// Unresolved names under IgnoreBadNames yield a NaN matrix for their pair. A
// singular origin matrix always fails.
func (m *Model) Rmat(ctx context.Context, from, to []string, opts RmatOptions) ([]Matrix, error) {
	if len(to) == 0 {
		if len(from) == 0 {
			return nil, ErrNoDevices
		}
		from, to = nil, from
		opts.ToHalf = opts.FromHalf
	}
	n, err := pairCount(len(from), len(to))
	if err != nil {
		return nil, err
	}

	t, err := m.cache.RmatTable(ctx, false)
	if err != nil {
		return nil, err
	}
	fromRefs, err := resolve(t, from, opts.FromHalf, opts.IgnoreBadNames, m.logger)
	if err != nil {
		return nil, err
	}
	toRefs, err := resolve(t, to, opts.ToHalf, opts.IgnoreBadNames, m.logger)
	if err != nil {
		return nil, err
	}

	// Inverses are shared between pairs with the same origin row.
	inverses := make(map[int]Matrix)
	out := make([]Matrix, n)
	for i := range n {
		b := toRefs[i%len(toRefs)]
		var a *rowRef
		if len(fromRefs) > 0 {
			a = &fromRefs[i%len(fromRefs)]
		}

		if !b.ok || (a != nil && !a.ok) {
			out[i] = NaNMatrix()
			continue
		}
		if a == nil {
			out[i] = t.rows[b.index].R
			continue
		}

		inv, ok := inverses[a.index]
		if !ok {
			inv, err = m.invert(t.rows[a.index])
			if err != nil {
				return nil, err
			}
			inverses[a.index] = inv
		}
		out[i] = t.rows[b.index].R.Mul(inv)
	}
	return out, nil
}

// TransferMatrix returns the transfer matrix from one name to another. An
// empty from starts at the start of the machine.
func (m *Model) TransferMatrix(ctx context.Context, from, to string, opts RmatOptions) (Matrix, error) {
	var fromNames []string
	if from != "" {
		fromNames = []string{from}
	}
	out, err := m.Rmat(ctx, fromNames, []string{to}, opts)
	if err != nil {
		return Matrix{}, err
	}
	return out[0], nil
}

// illConditioned is the condition number above which an origin inverse
// keeps fewer than about eight significant digits. Results are still
// returned but logged.
const illConditioned = 1e8

func (m *Model) invert(row RmatRow) (Matrix, error) {
	inv, cond, err := row.R.Inverse()
	if err != nil {
		return Matrix{}, &SingularMatrixError{Name: row.Element}
	}
	if cond > illConditioned {
		m.logger.Warn("R-matrix is ill-conditioned",
			slog.String("element", row.Element),
			slog.Float64("condition", cond))
	}
	return inv, nil
}

// pairCount applies the broadcasting rule to the two list lengths. A zero
// from length means the start of the machine.
func pairCount(from, to int) (int, error) {
	switch {
	case from == 0 || from == 1:
		return to, nil
	case to == 1:
		return from, nil
	case from == to:
		return from, nil
	default:
		return 0, &LengthMismatchError{From: from, To: to}
	}
}
