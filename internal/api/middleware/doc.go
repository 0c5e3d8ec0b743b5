// SPDX-License-Identifier: MIT

// Package middleware holds the HTTP ingress stack shared by every ratewait
// route: panic recovery, request ids, metrics, tracing, access logs and the
// sliding-window request guard.
package middleware
