package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mkirsten/beosound5c-sub001/internal/eventbus"
	"github.com/mkirsten/beosound5c-sub001/internal/localauth"
	"github.com/mkirsten/beosound5c-sub001/internal/router/service"
	"github.com/mkirsten/beosound5c-sub001/internal/router/store"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.New(filepath.Join(t.TempDir(), "router-state.json"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	hub := eventbus.New()
	svc, err := service.New(service.Config{DefaultSourceID: "tuner"}, routerclient.New(), hub, st)
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}
	t.Cleanup(svc.Close)

	gate := localauth.New(localauth.Config{Token: "s3cret"})
	h := New(svc, hub, gate)

	r := gin.New()
	r.GET("/health", h.Health)
	r.POST("/router/source", h.RegisterSource)
	r.POST("/router/media", h.PostMedia)
	r.POST("/router/command", h.PostCommand)
	r.POST("/router/volume_report", h.PostVolumeReport)
	r.POST("/router/playback_override", h.PlaybackOverride)
	r.GET("/router/status", h.Status)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthReturnsOK(t *testing.T) {
	r := newTestEngine(t)
	rec := doJSON(t, r, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRegisterSourceRejectsMissingFields(t *testing.T) {
	r := newTestEngine(t)
	rec := doJSON(t, r, http.MethodPost, "/router/source", map[string]any{"id": ""}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRegisterSourceRejectsUnreachableCommandURL(t *testing.T) {
	r := newTestEngine(t)
	rec := doJSON(t, r, http.MethodPost, "/router/source", map[string]any{
		"id": "phono", "state": "playing", "command_url": "http://127.0.0.1:1/unreachable",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestPlaybackOverrideRequiresBearerToken(t *testing.T) {
	r := newTestEngine(t)
	rec := doJSON(t, r, http.MethodPost, "/router/playback_override", map[string]any{"force": true, "source_id": "tuner"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestPlaybackOverrideAppliesWithValidToken(t *testing.T) {
	r := newTestEngine(t)
	rec := doJSON(t, r, http.MethodPost, "/router/playback_override",
		map[string]any{"force": true, "source_id": "tuner"},
		map[string]string{"Authorization": "Bearer s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	status := doJSON(t, r, http.MethodGet, "/router/status", nil, nil)
	var body map[string]any
	if err := json.Unmarshal(status.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body["active_source"] != "tuner" {
		t.Fatalf("active_source = %v, want tuner", body["active_source"])
	}
}

func TestPlaybackOverrideRejectsMissingForce(t *testing.T) {
	r := newTestEngine(t)
	rec := doJSON(t, r, http.MethodPost, "/router/playback_override",
		map[string]any{"source_id": "tuner"},
		map[string]string{"Authorization": "Bearer s3cret"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPostVolumeReportSuppressedOnAdapterMismatch(t *testing.T) {
	r := newTestEngine(t)
	rec := doJSON(t, r, http.MethodPost, "/router/volume_report", map[string]any{"volume": 10, "source": "sonos"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "suppressed" {
		t.Fatalf("status body = %v, want suppressed (no volume adapter configured)", body["status"])
	}
}
