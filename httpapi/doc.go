// Package httpapi serves the /api/auth JSON endpoints on top of an
// authcore.Engine: login, session check, logout, profile, password change,
// token refresh, login-attempt status and the admin user list.
package httpapi
