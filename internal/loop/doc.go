// Package loop provides the foreground scheduler every core component runs on.
//
// A Loop is a single goroutine executing posted closures in order, plus
// fixed-interval polls whose callbacks are also executed on that goroutine.
// Code running on the loop never needs locks to touch state owned by the
// loop. Manual is a deterministic Scheduler for tests.
package loop
