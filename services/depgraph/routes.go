// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the /v1/swiftdeps endpoints on rg (typically /v1).
//
// Endpoints:
//
//	GET  /v1/swiftdeps/health   - Service and last pass status
//	GET  /v1/swiftdeps/graph    - The whole graph
//	GET  /v1/swiftdeps/files/*id - One file's record
//	POST /v1/swiftdeps/rebuild  - Run a full pass
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	swiftdeps := rg.Group("/swiftdeps")
	{
		swiftdeps.GET("/health", handlers.HandleHealth)
		swiftdeps.GET("/graph", handlers.HandleGraph)
		swiftdeps.GET("/files/*id", handlers.HandleFile)
		swiftdeps.POST("/rebuild", handlers.HandleRebuild)
	}
}
