// Package model caches an accelerator machine model and derives per-device
// quantities from it.
//
// A machine model is two tables fetched from the model service: the R-matrix
// table (one 6×6 transfer matrix from the start of the machine to every
// element) and the Twiss table (twelve optics scalars per element). Both are
// cached per Model and refreshed on demand.
//
// # Names
//
// Callers address rows by device name or element name. Some elements are
// split in two halves named ELEMENT#1 and ELEMENT#2 that share a device
// name; a Half selects which one a name refers to. A name matching more rows
// than the split-element rule allows is reported as an error, never guessed.
//
// # Transfer matrices
//
// The matrix from element A to element B is R_B · R_A⁻¹. Rmat broadcasts a
// single name against a list and pairs equal-length lists positionally:
//
//	m, err := model.New(ctx, fetcher, model.Config{
//	    Key: model.Key{ModelName: "CU_HXR"},
//	})
//	r, err := m.TransferMatrix(ctx, "BPMS:IN20:221", "BPMS:LTU1:250", model.RmatOptions{})
//	rs, err := m.Rmat(ctx, []string{"QUAD:IN20:361"}, bpms, model.RmatOptions{})
//
// With IgnoreBadNames set, names that match no row produce NaN results
// instead of failing the whole call.
package model
