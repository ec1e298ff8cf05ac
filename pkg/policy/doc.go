// Package policy implements the two pure computations that shape an
// exported volunteer's directory identity: a deterministic-modulo-suffix
// email handle, and a bounded-length random password.
//
// Both functions are synchronous and side-effect free except for reading
// from [crypto/rand] and, for an out-of-range password length, emitting a
// warning through the supplied logger.
package policy
