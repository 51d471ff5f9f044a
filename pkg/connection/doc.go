// Package connection keeps a client connection to the model service alive.
//
// A Manager owns a ConnectFunc. After the first successful Connect, a lost
// connection is reported with NotifyConnectionLost and the manager redials
// in the background with exponential backoff:
//
//	500ms, 1s, 2s, 4s, 8s, 16s, 30s, 30s, ...
//
// Each delay gets up to 20% random jitter so that many clients restarted
// together do not redial in lockstep. The backoff resets after a
// successful dial.
package connection
