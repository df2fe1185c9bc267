// Package rtloop is the cooperative, single-goroutine-per-thread reactor
// underlying sfptpd-core's threads: the engine thread, the netlink
// (link-state) thread, and the freerun sync-module's thread are all
// rtloop.Thread values. See spec.md §4.1 and §5.
package rtloop
