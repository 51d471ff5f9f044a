// Package wire defines the CBOR wire format spoken between model clients and
// the model service.
//
// Every frame is a CBOR map with integer keys. Key 1 always carries the
// message type so a receiver can classify a frame before decoding it fully.
//
// # Message Types
//
// There are three message types:
//   - Request: client to service, names a table by scheme and path (NTURI-like)
//   - Response: service to client, carries a status and on success a Table
//   - Control: either direction, ping/pong/close
//
// # Tables
//
// A Table mirrors an NTTable: an ordered list of column labels and, per label,
// one CBOR array holding that column's values. All columns of a table have the
// same length (Table.Rows). Columns are kept as raw CBOR until a caller asks
// for them with a concrete Go type, so decoding a table never guesses types.
package wire
