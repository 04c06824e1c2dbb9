// Package ingestion turns a documentation site into index entries.
//
// A Pipeline discovers the pages under one or more roots, then walks them
// in discovery order through extraction, chunking, document-mode
// embedding and indexing. Fetching and chunking of upcoming pages runs
// ahead on a worker pool, but a page's chunks are only embedded and
// upserted after every earlier page has been indexed.
//
// Fetch and parse failures are recorded in the run report and the run
// continues. Embedding and index failures abort the run; the partial
// report is still returned and persisted.
package ingestion
