// Package authcore authenticates users, issues encrypted self-contained session
// tokens and answers role and speaker authorization questions.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config] and value
// types (MetricsSnapshot, UserInfo, SessionInfo). The token wire format lives in
// package token, the session payload, cache and revocation list in package session,
// and user persistence behind [account.Store]. Audit dispatch and login throttling
// live under internal/ and are never exported.
//
// # Session lifecycle
//
// A token is the whole session: user id, role, speaker, validity window. The Engine
// keeps an in-process cache of recently seen tokens; a cache miss is resolved by
// decrypting the token. Logout removes the cache entry and, unless revocation is
// disabled, denylists the token until it would have expired.
//
// # What this package must NOT do
//
//   - Log plaintext passwords or full tokens.
//   - Cache user records; every lookup goes to the store.
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// ValidateSession is the hot path. A cache hit costs one mutex acquisition and no I/O.
// A miss costs one AES decryption plus, with a Redis revocation list, two round-trips:
// one before decryption and one after the entry is cached. A hit never consults the
// revocation list, so a peer that cached a token keeps accepting it after another
// process logs it out, until the entry is swept or the token expires.
package authcore
