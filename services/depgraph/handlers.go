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
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers serves the read API of a Service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /v1/swiftdeps/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	st := h.svc.Status()
	status := "healthy"
	switch {
	case st.LastError != "":
		status = "degraded"
	case st.LastPass == nil:
		status = "starting"
	}
	c.JSON(http.StatusOK, HealthResponse{Status: status, Version: ServiceVersion, Service: st})
}

// HandleGraph handles GET /v1/swiftdeps/graph.
//
// Response:
//
//	200 OK: the graph in its persisted shape, keyed by file id
func (h *Handlers) HandleGraph(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Graph())
}

// HandleFile handles GET /v1/swiftdeps/files/*id.
//
// Response:
//
//	200 OK: FileResponse
//	404 Not Found: the file is not in the graph
func (h *Handlers) HandleFile(c *gin.Context) {
	fileID := strings.TrimPrefix(c.Param("id"), "/")
	rec, ok := h.svc.Record(fileID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not in graph: " + fileID, Code: "NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, FileResponse{FileID: fileID, Record: rec})
}

// HandleRebuild handles POST /v1/swiftdeps/rebuild.
//
// Description:
//
//	Runs a full pass and waits for it. A pass already running is waited
//	for first.
//
// Response:
//
//	200 OK: PassResult
//	500 Internal Server Error: the pass failed
func (h *Handlers) HandleRebuild(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	res, err := h.svc.Rebuild(c.Request.Context())
	if err != nil {
		code := "REBUILD_FAILED"
		if errors.Is(err, ErrPassFailed) {
			code = "PERSIST_FAILED"
		}
		h.svc.logger.Error("rebuild request failed", "request_id", requestID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, res)
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
