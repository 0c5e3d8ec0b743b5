// SPDX-License-Identifier: MIT

// Package ratelimit implements rate limiters and waits on them.
//
// A DirectLimiter holds one shared in-memory limit (GCRA, leaky bucket or
// token bucket). A KeyedLimiter applies a GCRA quota per key with state in a
// Store, so several processes can share limits through Redis or a database.
// A Policy layers a global limit, per-class limits and per-client limits.
//
// Every limiter answers a check with nil or a *NotUntil naming the earliest
// instant the same request could conform. Waiters turn that into a blocking
// call: they check once, sleep until the reported instant, and check again
// until the limiter admits them or the context ends.
package ratelimit
