// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldRequestID = "request_id"
	FieldComponent = "component"
	FieldEvent     = "event"

	// Limiter fields
	FieldLimiter    = "limiter"
	FieldAlgorithm  = "algorithm"
	FieldKey        = "key"
	FieldClass      = "class"
	FieldCells      = "cells"
	FieldRetryAfter = "retry_after"
	FieldWaited     = "waited"

	// Store fields
	FieldBackend = "backend"

	// HTTP fields
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration"
	FieldRemote   = "remote_addr"
	FieldListen   = "listen_addr"
)
