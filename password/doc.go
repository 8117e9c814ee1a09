// Package password implements salted adaptive password hashing.
//
// Two algorithms are supported: bcrypt (the default, cost 12) and Argon2id in PHC
// string format. [Multi] verifies hashes from either algorithm by prefix and reports
// [Multi.NeedsUpgrade] when a stored hash should be rewritten with the primary
// algorithm on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Return errors from Verify. A malformed hash is a failed verification.
//   - Log plaintext passwords.
package password
