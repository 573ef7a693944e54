package localdecoder

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

func newTestEngine(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := NewHandlers(svc)
	engine.POST("/command", h.Command)
	engine.GET("/status", h.Status)
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRegisterPostsExpectedSourceRecord(t *testing.T) {
	var received eventtypes.Source
	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer router.Close()

	player := NewPlayer("/bin/sh", nil)
	svc := NewService(Config{
		SourceID:  "player",
		Name:      "Local Player",
		SelfURL:   "http://127.0.0.1:8782",
		RouterURL: router.URL,
	}, player, routerclient.New())

	if err := svc.Register(t.Context(), eventtypes.StateRegistered); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if received.ID != "player" || received.CommandURL != "http://127.0.0.1:8782" {
		t.Fatalf("unexpected source record posted: %+v", received)
	}
	if received.Player != eventtypes.PlayerLocal {
		t.Fatalf("expected Player=local, got %q", received.Player)
	}
	if !received.Handles.Has(eventtypes.HandlePlay) || !received.Handles.Has(eventtypes.HandleStop) {
		t.Fatalf("expected play/stop handles to be advertised, got %+v", received.Handles)
	}
}

func TestCommandPlayStartsPlayback(t *testing.T) {
	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer router.Close()

	player := NewPlayer("/bin/sh", []string{"-c", "printf 'T 100\\n'"})
	player.SetQueue([]Track{{Path: "a.flac", DurationMs: 10000}})
	svc := NewService(Config{SourceID: "player", RouterURL: router.URL}, player, routerclient.New())
	engine := newTestEngine(svc)

	rec := doJSON(t, engine, http.MethodPost, "/command", map[string]any{"action": "play"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !player.IsPlaying() {
		t.Fatal("expected play action to start playback")
	}
}

func TestCommandStopHaltsPlayback(t *testing.T) {
	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer router.Close()

	player := NewPlayer("/bin/sh", []string{"-c", "printf 'T 100\\n'"})
	player.SetQueue([]Track{{Path: "a.flac", DurationMs: 10000}})
	if err := player.Play(t.Context()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	svc := NewService(Config{SourceID: "player", RouterURL: router.URL}, player, routerclient.New())
	engine := newTestEngine(svc)

	rec := doJSON(t, engine, http.MethodPost, "/command", map[string]any{"action": "stop"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if player.IsPlaying() {
		t.Fatal("expected stop action to halt playback")
	}
}

func TestCommandUnsupportedActionRejected(t *testing.T) {
	player := NewPlayer("/bin/sh", nil)
	svc := NewService(Config{SourceID: "player"}, player, routerclient.New())
	engine := newTestEngine(svc)

	rec := doJSON(t, engine, http.MethodPost, "/command", map[string]any{"action": "seek"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unsupported action, got %d", rec.Code)
	}
}

func TestStatusReportsCurrentTrackAndPlayingState(t *testing.T) {
	player := NewPlayer("/bin/sh", nil)
	player.SetQueue([]Track{{Path: "a.flac", DurationMs: 10000}})
	svc := NewService(Config{SourceID: "player"}, player, routerclient.New())
	engine := newTestEngine(svc)

	rec := doJSON(t, engine, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["track"] != "a.flac" {
		t.Fatalf("expected track=a.flac, got %+v", body)
	}
	if body["playing"] != false {
		t.Fatalf("expected playing=false before Play is called, got %+v", body)
	}
}
