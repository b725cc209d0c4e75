// Package httpserver exposes the tiny64 API over HTTP:
//
//	POST /v1/ids/new?count=N        issue fresh IDs
//	GET  /v1/ids/decode?id=...      unpack IDs, optional CEL filter
//	GET  /v1/healthz                liveness and storage health
//
// Responses are JSON; decode rejects malformed tokens with 400 rather than
// returning best-effort values.
package httpserver
