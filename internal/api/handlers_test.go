package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/factory-monitor/monitor-server/internal/config"
	"github.com/factory-monitor/monitor-server/internal/models"
	"github.com/factory-monitor/monitor-server/internal/storage"
)

type fakeStore struct {
	storage.Store
	devices    map[string]*models.Device
	entries    []models.LogEntry
	gotFilters storage.LogFilters
	snapshots  map[string]*models.StatisticsSnapshot
	pingErr    error
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetDevice(_ context.Context, deviceID string) (*models.Device, error) {
	if d, ok := f.devices[deviceID]; ok {
		return d, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) ListDevices(context.Context, int, int) ([]*models.Device, int64, error) {
	var out []*models.Device
	for _, d := range f.devices {
		out = append(out, d)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) QueryLogs(_ context.Context, filters storage.LogFilters) ([]models.LogEntry, error) {
	f.gotFilters = filters
	return f.entries, nil
}

func (f *fakeStore) LatestStatisticsSnapshot(_ context.Context, deviceID string) (*models.StatisticsSnapshot, error) {
	if snap, ok := f.snapshots[deviceID]; ok {
		return snap, nil
	}
	return nil, storage.ErrNotFound
}

func newTestServer(store storage.Store) *RESTServer {
	cfg := &config.Config{}
	cfg.Server.Name = "monitor-server"
	cfg.Server.Version = "test"
	return NewRESTServer(cfg, store)
}

func get(t *testing.T, s *RESTServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	rec := get(t, newTestServer(&fakeStore{}), "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["name"] != "monitor-server" {
		t.Fatalf("body = %v", body)
	}
}

func TestHandleGetDevice(t *testing.T) {
	store := &fakeStore{devices: map[string]*models.Device{
		"dev1": {ID: "dev1", Name: "Welding Robot"},
	}}
	s := newTestServer(store)

	rec := get(t, s, "/api/v1/devices/dev1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var device models.Device
	json.Unmarshal(rec.Body.Bytes(), &device)
	if device.Name != "Welding Robot" {
		t.Fatalf("device = %+v", device)
	}

	if rec := get(t, s, "/api/v1/devices/ghost"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing device status = %d", rec.Code)
	}
}

func TestHandleQueryLogs(t *testing.T) {
	store := &fakeStore{entries: []models.LogEntry{{DeviceID: "dev1", Timestamp: 5}}}
	s := newTestServer(store)

	rec := get(t, s, "/api/v1/logs?device_id=dev1&severity=HIGH&start=1&end=10&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if store.gotFilters.DeviceID != "dev1" || store.gotFilters.Severity != "HIGH" || store.gotFilters.Limit != 5 {
		t.Fatalf("filters = %+v", store.gotFilters)
	}
	if store.gotFilters.TimeRange == nil || store.gotFilters.TimeRange.Start != 1 || store.gotFilters.TimeRange.End != 10 {
		t.Fatalf("time range = %+v", store.gotFilters.TimeRange)
	}

	var body struct {
		Count int               `json:"count"`
		Data  []models.LogEntry `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Count != 1 || len(body.Data) != 1 {
		t.Fatalf("body = %+v", body)
	}
}

func TestHandleGetDeviceStatistics(t *testing.T) {
	store := &fakeStore{snapshots: map[string]*models.StatisticsSnapshot{
		"dev1": {ID: "SNAP1", DeviceID: "dev1"},
	}}
	s := newTestServer(store)

	rec := get(t, s, "/api/v1/devices/dev1/statistics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap models.StatisticsSnapshot
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.ID != "SNAP1" {
		t.Fatalf("snapshot = %+v", snap)
	}

	if rec := get(t, s, "/api/v1/devices/dev2/statistics"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing snapshot status = %d", rec.Code)
	}
}
