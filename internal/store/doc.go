// Package store provides key-value backends for the persistent token store.
//
// Every backend exposes the same three operations, which is all the session manager needs:
//
//	Get(ctx, key) (value, found, err)
//	Set(ctx, key, value) error
//	Delete(ctx, key) error
//
// [Memory] keeps values in process memory and is used by tests and the "memory" backend.
// [Redis] shares values between processes through a Redis server.
// [Encrypted] wraps any backend and seals values with XChaCha20-Poly1305 before they are written.
//
// The sqlite backend lives in the repositories package alongside the schema migrations.
package store
