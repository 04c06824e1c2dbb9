// Package embedding turns texts into vectors through a provider embedder.
//
// The Client splits input into batches, retries failed batches with
// exponential backoff and caches query embeddings. The mode is passed
// through to the provider unchanged.
package embedding
