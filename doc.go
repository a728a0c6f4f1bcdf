// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the FamLink Chat API server.

FamLink Chat is the collaboration core of a family chat application:
call session lifecycle, broadcast fan-out with per-recipient delivery
tracking, and poll voting, all inside chat rooms.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... go run main.go

Or with flags:

	go run main.go -p 4620 -d "postgres://..."

SQLite works for local development:

	go run main.go -t sqlite -d "file:famlink.db"

# Configuration

Required settings:

  - DATABASE_URL (-d): Database connection string

Optional settings:

  - PORT (-p): Server port (default: 4620)
  - DATABASE_TYPE (-t): "postgres" or "sqlite" (default: postgres)
  - SENTRY_DSN (-sentry-dsn): Error reporting DSN

A .env file in the working directory is loaded if present.

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (calls, broadcast, polls, rooms, events)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers, domain error mapping
  - models: Domain and request/response types
  - calls, broadcast, polls: Domain engines over the shared database
  - rooms: Room and membership service
  - events: In-process pub/sub hub behind the WebSocket feed
  - db: Schema creation
  - cliparse: Configuration parsing
  - logger: tint console logging with optional Sentry reporting

See package documentation for each component.
*/
package main
