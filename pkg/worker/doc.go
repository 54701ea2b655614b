// Package worker provides a generic, bounded worker pool.
//
// The hub client uses it to handle inbound queries concurrently. Work is
// submitted either with Submit, which rejects with ErrQueueFull when the
// queue is at capacity, or with SubmitWait, which blocks until there is room:
//
//	pool := worker.NewPool(8, 256, func(ctx context.Context, in inbound) error {
//	    return handle(ctx, in)
//	}, worker.WithMetricsRegistry[inbound](registry, "hub_dispatch"))
//
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.SubmitWait(ctx, in); err != nil {
//	    // ctx cancelled or pool stopped
//	}
//
// Statistics are always tracked with atomics (Stats); Prometheus metrics are
// registered only when a registry and prefix are supplied.
package worker
