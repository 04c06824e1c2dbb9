// Package sqlite provides a SessionStore backed by a single SQLite file.
//
// It is the file-based alternative to the badger session log for
// deployments that want conversation history inspectable with ordinary
// SQL tooling. Tool invocations and citations are stored as msgpack
// blobs using the storage package codecs.
package sqlite
