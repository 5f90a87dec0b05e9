// Package worker provides a worker pool for parallel table validation.
//
// The pool spreads per-table validation across a bounded set of goroutines,
// which is where study validation parallelizes: tables are independent until
// the cross-domain pass.
//
// Example usage:
//
//	// Create a worker pool with 4 workers
//	pool := worker.NewPool(validator, 4)
//
//	// Submit jobs
//	for _, tbl := range tables {
//	    pool.Submit(worker.Job{Table: tbl})
//	}
//
//	// Collect results
//	batch := pool.CloseAndWait()
//	for _, result := range batch.Results {
//	    if result.Error != nil {
//	        // Handle error
//	    }
//	    // Process result.Result
//	}
package worker
