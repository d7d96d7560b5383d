// Package sweep runs a reachability probe and a reverse DNS lookup for every
// address of a list, with at most Options.Concurrency addresses in flight.
//
// Records come back in input order whatever the completion order. A
// cancelled scan stops admitting addresses, lets in-flight work finish within
// the grace period and returns what completed.
//
//	engine, err := sweep.New(prober, resolver, sweep.Options{Concurrency: 64})
//	result, err := engine.Scan(ctx, addrs)
package sweep
