// Package reembed refreshes every vector in the index with the current
// embedding model.
//
// Entries are read through storage.EntryScanner, their chunk text is
// embedded again in document mode and the result is upserted under the
// same ID. When the new model changes the vector dimension the collection
// is recreated before writing.
package reembed
