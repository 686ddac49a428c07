// Package repository persists service state in a single pebble database:
// the file catalog (link -> file metadata) under the "file/" prefix and the
// cache index (link -> last used) under the "cache/" prefix. Both survive
// restarts; the cache engine reconciles the cache index against the disk on
// startup.
package repository
