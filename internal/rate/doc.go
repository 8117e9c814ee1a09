// Package rate provides the Redis-backed login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout:
//   - <prefix>:login:u:<username>
//   - <prefix>:login:ip:<ip>
//
// # What this package must NOT do
//
//   - Decide whether credentials are valid.
//   - Be imported outside the authcore module.
package rate
