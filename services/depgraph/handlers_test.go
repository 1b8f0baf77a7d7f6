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
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/swiftdeps/services/depgraph/deps"
)

func setupRouter(t *testing.T) (*gin.Engine, *Service, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	writeSwift(t, root, "App/Store.swift", singletonSource)
	writeSwift(t, root, "App/Runner.swift", loggerSource)

	svc := newTestService(t, root, newFakeSource())
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	return router, svc, root
}

func doRequest(router http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHandleHealth_StartingThenHealthy(t *testing.T) {
	router, svc, root := setupRouter(t)

	w := doRequest(router, http.MethodGet, "/v1/swiftdeps/health")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "starting", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, root, resp.Service.Root)

	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	w = doRequest(router, http.MethodGet, "/v1/swiftdeps/health")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	require.NotNil(t, resp.Service.LastPass)
	assert.Equal(t, 2, resp.Service.LastPass.GraphFiles)
}

func TestHandleGraph(t *testing.T) {
	router, svc, _ := setupRouter(t)
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/v1/swiftdeps/graph")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]*deps.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, []string{"shared"}, body["App/Store.swift"].Values(deps.Singletons))
	assert.Equal(t, []string{"print"}, body["App/Runner.swift"].Values(deps.FunctionCalls))
}

func TestHandleFile(t *testing.T) {
	router, svc, _ := setupRouter(t)
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/v1/swiftdeps/files/App/Store.swift")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		FileID string       `json:"file_id"`
		Record *deps.Record `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "App/Store.swift", resp.FileID)
	assert.True(t, resp.Record.Has(deps.Singletons, "shared"))

	w = doRequest(router, http.MethodGet, "/v1/swiftdeps/files/App/Missing.swift")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "NOT_FOUND", errResp.Code)
}

func TestHandleRebuild(t *testing.T) {
	router, svc, _ := setupRouter(t)

	w := doRequest(router, http.MethodPost, "/v1/swiftdeps/rebuild")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var res PassResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "full", res.Kind)
	assert.Equal(t, 2, res.Classified)
	assert.Len(t, svc.Graph(), 2)
}

func TestHandleRebuild_PersistFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	writeSwift(t, root, "A.swift", importSource)

	cfg := DefaultServiceConfig(root)
	cfg.Output = filepath.Join(root, "missing", "dependencies.json")
	svc, err := NewService(cfg, WithSource(newFakeSource()), WithLogger(discard()))
	require.NoError(t, err)

	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))

	w := doRequest(router, http.MethodPost, "/v1/swiftdeps/rebuild")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "PERSIST_FAILED", errResp.Code)

	w = doRequest(router, http.MethodGet, "/v1/swiftdeps/health")
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
}

func TestNewRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestService(t, t.TempDir(), newFakeSource())
	router := NewRouter(svc, "swiftdeps-test")

	w := doRequest(router, http.MethodGet, "/v1/swiftdeps/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestService(t, t.TempDir(), newFakeSource())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, NewRouter(svc, "swiftdeps-test")) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/v1/swiftdeps/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_BadAddress(t *testing.T) {
	err := Serve(context.Background(), "not-an-address", http.NotFoundHandler())
	assert.Error(t, err)
}
