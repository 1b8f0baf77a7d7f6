// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command swiftdeps extracts a structural dependency graph from a Swift
// project and keeps dependencies.json current while files change.
//
// Usage:
//
//	swiftdeps                      # full pass, then watch (Ctrl-C to stop)
//	swiftdeps watch --http-addr 127.0.0.1:7420
//	swiftdeps extract --root ~/src/MyApp
//	swiftdeps context --limit 10
//
// Example requests while watching with --http-addr:
//
//	curl http://127.0.0.1:7420/v1/swiftdeps/health
//	curl http://127.0.0.1:7420/v1/swiftdeps/files/App/ContentView.swift
//	curl -X POST http://127.0.0.1:7420/v1/swiftdeps/rebuild
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
