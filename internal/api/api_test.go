package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"asterix_server/internal/track"
)

func newTestServer() (*Server, *track.Store) {
	store := track.NewStore()
	return NewServer(store, Config{Port: 8000}), store
}

func TestHealthEndpoint(t *testing.T) {
	server, store := newTestServer()
	cs := "IBE001"
	if _, err := store.Load([]track.RawRecord{{Timestamp: "2024-01-01T10:00:00Z", Callsign: &cs}}); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["records"].(float64) != 1 {
		t.Errorf("records = %v, want 1", resp["records"])
	}
}

func TestUpload(t *testing.T) {
	server, store := newTestServer()

	body := `[
		{"timestamp":"2024-01-01T10:00:02Z","callsign":"VLG100","altitude_ft":30000},
		{"timestamp":"2024-01-01T10:00:01Z","callsign":"IBE001","altitude_ft":10000}
	]`
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body)
	}

	var meta track.Metadata
	if err := json.NewDecoder(rec.Body).Decode(&meta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", meta.RecordCount)
	}
	if len(meta.UniqueCallsigns) != 2 {
		t.Errorf("UniqueCallsigns = %v, want 2 entries", meta.UniqueCallsigns)
	}

	all := store.GetAll()
	if len(all) != 2 || *all[0].Callsign != "IBE001" {
		t.Errorf("store not loaded in timestamp order: %+v", all)
	}
}

func TestUploadRejectsBadBatch(t *testing.T) {
	server, store := newTestServer()
	cs := "IBE001"
	if _, err := store.Load([]track.RawRecord{{Timestamp: "2024-01-01T10:00:00Z", Callsign: &cs}}); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not an array", `{"timestamp":"2024-01-01T10:00:00Z"}`},
		{"bad row", `[{"timestamp":"garbage"}]`},
		{"bad field type", `[{"timestamp":"2024-01-01T10:00:00Z","altitude_ft":"high"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			server.Router().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			// Previous dataset stays live.
			if store.Size() != 1 {
				t.Errorf("store size = %d, want 1", store.Size())
			}
		})
	}
}

func TestMetadataEndpoint(t *testing.T) {
	server, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/metadata", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var meta track.Metadata
	if err := json.NewDecoder(rec.Body).Decode(&meta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.RecordCount != 0 {
		t.Errorf("RecordCount = %d, want 0", meta.RecordCount)
	}
	if meta.TimeStart != nil {
		t.Errorf("TimeStart = %v, want nil", meta.TimeStart)
	}
}
