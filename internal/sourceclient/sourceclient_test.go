package sourceclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

func newTestClient(t *testing.T, router, input *httptest.Server) *Client {
	t.Helper()
	return New(Config{
		SourceID:   "cd",
		Name:       "CD Player",
		CommandURL: "http://127.0.0.1:8769",
		Player:     eventtypes.PlayerLocal,
		Handles:    eventtypes.NewHandleSet([]eventtypes.Handle{eventtypes.HandlePlay, eventtypes.HandleStop}),
		RouterURL:  router.URL,
		InputURL:   input.URL,
	}, routerclient.New())
}

func TestRegisterPostsSourceRecord(t *testing.T) {
	var received eventtypes.Source
	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer router.Close()
	input := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	defer input.Close()

	c := newTestClient(t, router, input)
	if err := c.Register(t.Context(), eventtypes.StateRegistered); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if received.ID != "cd" || received.State != eventtypes.StateRegistered {
		t.Fatalf("unexpected source record: %+v", received)
	}
}

func TestAnnounceMenuItemRemembersIDForRemoval(t *testing.T) {
	var lastBody map[string]any
	input := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer input.Close()
	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	defer router.Close()

	c := newTestClient(t, router, input)
	if err := c.AnnounceMenuItem(t.Context(), eventtypes.MenuItem{Label: "CD", Route: "menu/cd", ID: "cd"}, ""); err != nil {
		t.Fatalf("AnnounceMenuItem: %v", err)
	}
	if lastBody["action"] != "add" {
		t.Fatalf("expected action=add, got %+v", lastBody)
	}
	if c.menuID != "cd" {
		t.Fatalf("expected menuID to be remembered as %q, got %q", "cd", c.menuID)
	}

	if err := c.RemoveMenuItem(t.Context()); err != nil {
		t.Fatalf("RemoveMenuItem: %v", err)
	}
	if lastBody["action"] != "remove" || lastBody["id"] != "cd" {
		t.Fatalf("expected a remove of id=cd, got %+v", lastBody)
	}
}

func TestGoodbyePostsGoneAndRemovesMenuItem(t *testing.T) {
	var states []eventtypes.SourceState
	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body eventtypes.Source
		_ = json.NewDecoder(r.Body).Decode(&body)
		states = append(states, body.State)
		w.WriteHeader(http.StatusOK)
	}))
	defer router.Close()

	var menuActions []string
	input := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if action, ok := body["action"].(string); ok {
			menuActions = append(menuActions, action)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer input.Close()

	c := newTestClient(t, router, input)
	c.menuID = "cd"
	c.Goodbye(t.Context())

	if len(states) != 1 || states[0] != eventtypes.StateGone {
		t.Fatalf("expected exactly one state=gone post, got %v", states)
	}
	if len(menuActions) != 1 || menuActions[0] != "remove" {
		t.Fatalf("expected exactly one menu removal, got %v", menuActions)
	}
}

func TestBroadcastUsesSourceUpdateType(t *testing.T) {
	var lastBody map[string]any
	input := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer input.Close()
	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	defer router.Close()

	c := newTestClient(t, router, input)
	if err := c.Broadcast(t.Context(), map[string]any{"channel": 3}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if lastBody["type"] != "cd_update" {
		t.Fatalf("expected type=cd_update, got %+v", lastBody)
	}
}
