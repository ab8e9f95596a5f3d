// Package async provides panic-safe goroutine helpers and a bounded
// worker pool.
//
// Fire-and-forget work (event fan-out, cache invalidation, webhook
// delivery) goes through SafeGo so a panic in a background task never
// takes down the process. Bulk work (media uploads, janitor purges)
// goes through WorkerPool or Batch to bound concurrency.
package async
