// Package session holds the session payload model, the in-memory session cache and
// the revocation lists consulted when a token is presented after logout.
//
// # Architecture boundaries
//
// This package owns [Data] (and its token wire layout), [Cache] and [RevocationList].
// It does NOT encrypt tokens, verify credentials or decide whether a session grants
// access. Those belong to package token and the Engine.
//
// # What this package must NOT do
//
//   - Import authcore (no upward imports).
//   - Key revocation entries by raw token strings (use [TokenID]).
package session
