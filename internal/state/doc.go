// Package state provides the filesystem-backed session activity cache.
//
// Layout under the cache root:
//
//	index.json               recency-ordered index of cached sessions
//	sessions/<id>.json       one file per session, optionally zstd compressed
//
// Both files carry a schema tag; files with any other tag are treated as
// absent rather than misread.
package state
