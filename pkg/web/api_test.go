package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/config"
	"github.com/dbehnke/dect-nwk/pkg/database"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/peer"
)

type fakeSource struct {
	portables []peer.Snapshot
	links     []lce.LinkInfo
	calls     []CallInfo
}

func (f *fakeSource) Portables() []peer.Snapshot { return f.portables }
func (f *fakeSource) Links() []lce.LinkInfo      { return f.links }
func (f *fakeSource) Calls() []CallInfo          { return f.calls }

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "web.db")}, nil)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func get(t *testing.T, h http.Handler, path string, out interface{}) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode %s: %v", path, err)
		}
	}
	return w.Code
}

func TestAPI_Status(t *testing.T) {
	source := &fakeSource{
		portables: []peer.Snapshot{
			{IPUI: "N:08ae00001", State: peer.StateAttached.String()},
			{IPUI: "N:08ae00002", State: peer.StateDetached.String()},
		},
		links: []lce.LinkInfo{{ID: 1, State: "established"}},
	}
	srv := NewServer(config.WebConfig{}, nil, source, nil)

	var result map[string]interface{}
	if code := get(t, srv.Handler(), "/api/status", &result); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if result["status"] != "running" {
		t.Errorf("status = %v, want running", result["status"])
	}
	if result["portables_attached"] != float64(1) {
		t.Errorf("portables_attached = %v, want 1", result["portables_attached"])
	}
	if result["links"] != float64(1) {
		t.Errorf("links = %v, want 1", result["links"])
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	api := NewAPI(logger.Nop(), nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/portables", nil)
	w := httptest.NewRecorder()
	api.HandlePortables(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestAPI_LiveState(t *testing.T) {
	source := &fakeSource{
		portables: []peer.Snapshot{{IPUI: "N:08ae00001", Extension: "100"}},
		links:     []lce.LinkInfo{{ID: 7, State: "established", Peer: "N:08ae00001"}},
		calls:     []CallInfo{{ID: 3, Caller: "N:08ae00001", Called: "101", State: "alerting"}},
	}
	h := NewServer(config.WebConfig{}, nil, source, nil).Handler()

	var portables []peer.Snapshot
	get(t, h, "/api/portables", &portables)
	if len(portables) != 1 || portables[0].Extension != "100" {
		t.Errorf("unexpected portables: %+v", portables)
	}

	var links []lce.LinkInfo
	get(t, h, "/api/links", &links)
	if len(links) != 1 || links[0].ID != 7 {
		t.Errorf("unexpected links: %+v", links)
	}

	var calls []CallInfo
	get(t, h, "/api/calls", &calls)
	if len(calls) != 1 || calls[0].Called != "101" {
		t.Errorf("unexpected calls: %+v", calls)
	}
}

func TestAPI_EmptyWithoutSource(t *testing.T) {
	h := NewServer(config.WebConfig{}, nil, nil, nil).Handler()

	var portables []peer.Snapshot
	if code := get(t, h, "/api/portables", &portables); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if portables == nil || len(portables) != 0 {
		t.Errorf("Expected empty array, got %v", portables)
	}

	if code := get(t, h, "/api/subscriptions", nil); code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 without database, got %d", code)
	}
}

func TestAPI_CallHistory(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewCallRecordRepository(db.GetDB())
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		if err := repo.Create(&database.CallRecord{
			CallerIPUI: "N:08ae00001",
			StartTime:  base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	h := NewServer(config.WebConfig{}, nil, nil, db).Handler()

	var result struct {
		Calls []database.CallRecord `json:"calls"`
		Total int64                 `json:"total"`
	}
	if code := get(t, h, "/api/calls/history?page=1&per_page=2", &result); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if result.Total != 3 || len(result.Calls) != 2 {
		t.Errorf("got %d calls of %d, want 2 of 3", len(result.Calls), result.Total)
	}
}

func TestAPI_Subscriptions(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewPortableRepository(db.GetDB())
	if err := repo.Upsert(&database.Portable{IPUI: "N:08ae00001", Extension: "100"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	srv := NewServer(config.WebConfig{}, nil, nil, db)
	var removed string
	srv.GetAPI().OnUnsubscribe(func(ipui string) { removed = ipui })
	h := srv.Handler()

	var list []database.Portable
	get(t, h, "/api/subscriptions", &list)
	if len(list) != 1 {
		t.Fatalf("Expected 1 subscription, got %d", len(list))
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/subscriptions/N:08ae00001", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}
	if removed != "N:08ae00001" {
		t.Errorf("unsubscribe callback got %q", removed)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/subscriptions/N:08ae00001", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", w.Code)
	}
}

func TestAPI_PortableCalls(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewCallRecordRepository(db.GetDB())
	base := time.Now().Add(-time.Hour)
	for i, callee := range []string{"N:08ae00002", "N:08ae00003", "N:08ae00002"} {
		if err := repo.Create(&database.CallRecord{
			CallerIPUI: "N:08ae00001",
			CalleeIPUI: callee,
			StartTime:  base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	h := NewServer(config.WebConfig{}, nil, nil, db).Handler()

	var recs []database.CallRecord
	if code := get(t, h, "/api/portables/N:08ae00002/calls", &recs); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d calls, want 2", len(recs))
	}
	if !recs[0].StartTime.After(recs[1].StartTime) {
		t.Error("Expected newest call first")
	}

	if code := get(t, NewServer(config.WebConfig{}, nil, nil, nil).Handler(), "/api/portables/N:08ae00002/calls", nil); code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 without database, got %d", code)
	}
}

func TestAPI_StatusBuild(t *testing.T) {
	SetVersionInfo("2.0.0", "deadbeef", "now")
	var result struct {
		Build BuildInfo `json:"build"`
	}
	if code := get(t, NewServer(config.WebConfig{}, nil, nil, nil).Handler(), "/api/status", &result); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if result.Build.Version != "2.0.0" || result.Build.Commit != "deadbeef" || result.Build.Go == "" {
		t.Errorf("unexpected build info: %+v", result.Build)
	}
}
