package volumeadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

func TestProxyAdapterApplyPostsVolumeSetAndClamps(t *testing.T) {
	var body map[string]any
	player := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer player.Close()

	a := NewProxyAdapter(player.URL, 70, routerclient.New())
	got := a.Apply(90, nil)
	if got != 70 {
		t.Fatalf("expected Apply to clamp to max 70, got %d", got)
	}
	if body["action"] != "volume_set" {
		t.Fatalf("expected action=volume_set, got %+v", body)
	}
	params, ok := body["params"].(map[string]any)
	if !ok || params["volume"] != float64(70) {
		t.Fatalf("expected params.volume=70, got %+v", body)
	}
}

func TestProxyAdapterApplyFailureKeepsPriorLevel(t *testing.T) {
	player := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer player.Close()

	a := NewProxyAdapter(player.URL, 100, routerclient.New())
	a.level = 40
	got := a.Apply(80, nil)
	if got != 40 {
		t.Fatalf("expected Apply to keep the prior level 40 on failure, got %d", got)
	}
}

func TestProxyAdapterReportReadsPlayerStatus(t *testing.T) {
	player := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"volume": 55})
	}))
	defer player.Close()

	a := NewProxyAdapter(player.URL, 100, routerclient.New())
	if got := a.Report(); got != 55 {
		t.Fatalf("expected Report to reflect the player's status, got %d", got)
	}
}
