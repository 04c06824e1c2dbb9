// Package qdrant implements storage.VectorIndex on a Qdrant server over gRPC.
//
// Entries become points with numeric ids taken from core.ID and a cosine
// distance vector. The payload carries the chunk metadata plus a "seq"
// field recording first insertion, which Search uses to order equal
// scores. "seq" has an integer payload index so the next sequence number
// can be recovered after a restart.
package qdrant
