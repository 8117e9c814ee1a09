// Package middleware adapts authcore.Engine to net/http.
//
// # Guards
//
//   - [RequireSession] validates the ws_session cookie or a Bearer token and
//     injects the session into the request context.
//   - [RequireRole] additionally enforces a minimum role.
//
// # Cookies
//
// [SetSessionCookie] and [ClearSessionCookie] manage the httpOnly ws_session
// cookie. The cookie is marked Secure when the request arrived over TLS.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Authentication
// decisions are made by the Engine; the middleware only maps errors onto
// status codes.
package middleware
