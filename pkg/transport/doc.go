// Package transport moves model service frames over TCP.
//
// Each frame is a 4-byte big-endian length followed by one CBOR message.
// Connections are plain TCP or TLS 1.3 with ALPN "meme/1"; with TLS the
// server may require client certificates.
//
// Server accepts connections, runs one read loop per connection and answers
// ping and close control frames itself. Every other frame goes to
// ServerConfig.OnMessage. Client dials and returns a ClientConn whose
// Receive the caller drives, usually from a single read goroutine.
//
// When a log.Logger is configured, both ends record raw frames (payloads
// cut at MaxLogFrameDataSize), control frames and connection state changes
// under a per-connection uuid.
//
// There is no keep-alive loop. Clients hold a connection for the life of a
// session and bound each request with its own timeout.
package transport
