// Package storage provides durable persistence for the session token pair.
//
// # Overview
//
// A Store holds exactly two opaque strings, the access token and the refresh
// token, under two fixed keys (AccessTokenKey, RefreshTokenKey). It does no
// expiry tracking and no validation of token shape.
//
// # Backends
//
//   - MemoryStore: process memory, for tests and short-lived tools
//   - FileStore: JSON file, replaced atomically on every write
//   - RedisStore: two Redis keys, pair written in MULTI/EXEC
//   - SQLStore: two rows in a session_tokens table (SQLite via OpenSQLite)
//
// Select one from configuration:
//
//	store, closer, err := storage.New(storage.Config{Type: "file", FilePath: path})
//	if err != nil {
//		return err
//	}
//	defer closer.Close()
//
// # Semantics
//
// Set writes both tokens before either becomes visible. SetAccess overwrites
// only the access token and is used after a silent refresh. Clear removes both.
// Absent tokens read as "".
package storage
