// Package token implements the symmetric session token codec.
//
// # Wire format
//
//	base64url( IV[16] || AES-256-CBC( PKCS7( JSON(payload) ) ) )
//
// The IV is drawn from crypto/rand on every call. The layout is fixed so that tokens
// minted by existing deployments keep decoding.
//
// # Integrity
//
// The format carries no MAC. CBC provides confidentiality only: an attacker who flips
// ciphertext bits can steer the decrypted plaintext, and the change is caught only when
// it happens to break padding or JSON. Callers must treat a decoded payload as
// untrusted until their own structural checks pass. New formats should use an AEAD
// mode instead.
//
// # What this package must NOT do
//
//   - Distinguish decryption failure causes to callers (every failure is [ErrDecrypt]).
//   - Truncate, pad or derive keys: the key is used exactly as given.
package token
