// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and JSON helpers.

# Helpers

  - WithLogging: request start/completion logging via slog
  - JSONResponse / ErrorResponse: JSON body writers
  - DomainErrorResponse: engine error kind → HTTP status mapping
  - ParseJSONBody: request body decoding
  - CORS: cross-origin support for web clients
  - GetClientIP: original client IP behind proxies (X-Forwarded-For,
    X-Real-IP, RemoteAddr fallback), used by WithLogging

# Error Mapping

The engines return typed failures; DomainErrorResponse translates them at
the boundary:

	models.ErrNotFound         → 404
	models.ErrInvalidState     → 409
	models.ErrPermissionDenied → 403
	anything else              → 500 (logged)

Idempotent no-ops (duplicate recipient add, re-vote, redundant status
transition) are successes inside the engines and never reach this mapping.
*/
package middleware
