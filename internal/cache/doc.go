// Package cache implements the local disk backend of the file cache: durable
// byte storage addressed by file key under StoragePath/<key>. Writes go
// through a temp file + rename so a crash never leaves a partially written
// body under its final name, ranged reads stream straight from the file, and
// List enumerates what is physically present so the cache engine can
// reconcile disk contents with its persisted index on startup. The store does
// not enforce capacity; eviction policy lives in internal/filecache.
package cache
