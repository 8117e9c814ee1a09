// Package account defines the user record model, the closed [Role] enum and the
// [Store] contract that durable user stores implement.
//
// # What this package must NOT do
//
//   - Import authcore or any store implementation.
//   - Hash or verify passwords (see package password).
package account
