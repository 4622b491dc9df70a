package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/factory-monitor/monitor-server/internal/models"
	"github.com/factory-monitor/monitor-server/internal/storage"
)

type insert struct {
	collection string
	record     *models.LogRecord
}

type fakeStore struct {
	storage.Store
	inserts []insert
	failOn  string
}

func (f *fakeStore) InsertLog(_ context.Context, collection string, record *models.LogRecord) error {
	f.inserts = append(f.inserts, insert{collection, record})
	if collection == f.failOn {
		return errors.New("write failed")
	}
	return nil
}

var testDevice = &models.Device{
	ID:       "dev1",
	Code:     "RB01",
	Name:     "Welding Robot",
	Type:     "robot",
	Location: "line-a",
	LogGroup: "/factory/line-a/robots",
	Thresholds: map[string]models.Thresholds{
		"temperature": {Medium: 60, High: 80, Critical: 90},
	},
}

func TestBuildAndStoreRecord(t *testing.T) {
	store := &fakeStore{}
	b := NewBuilder(store, "logs_all")

	payload := models.LogEventPayload{
		LogCode:  models.LogCodeTemp,
		Message:  "overheat",
		Metadata: map[string]interface{}{"temperature": 95.0},
	}
	b.BuildAndStore(context.Background(), "dev1", "INFO", payload, "factory/dev1/log/INFO", testDevice)

	if len(store.inserts) != 2 {
		t.Fatalf("got %d inserts, want 2", len(store.inserts))
	}
	if store.inserts[0].collection != "logs_factory_line_a_robots" {
		t.Errorf("group collection = %q", store.inserts[0].collection)
	}
	if store.inserts[1].collection != "logs_all" {
		t.Errorf("aggregate collection = %q", store.inserts[1].collection)
	}

	rec := store.inserts[1].record
	if rec.Severity != "CRITICAL" {
		t.Errorf("severity = %q, want CRITICAL", rec.Severity)
	}

	wantStream := "dev1/" + time.Now().UTC().Format("2006/01/02") + "/INFO"
	if rec.LogStream != wantStream {
		t.Errorf("log_stream = %q, want %q", rec.LogStream, wantStream)
	}

	if !strings.HasPrefix(rec.ID, "RB01-TMP-") || len(rec.ID) != len("RB01-TMP-")+26 {
		t.Errorf("structured id = %q", rec.ID)
	}
	if rec.Timestamp == 0 || rec.IngestionTime == 0 {
		t.Error("timestamps must be filled")
	}
	if rec.Topic != "factory/dev1/log/INFO" {
		t.Errorf("topic = %q", rec.Topic)
	}
}

func TestBuildAndStoreExplicitTimestamp(t *testing.T) {
	store := &fakeStore{}
	b := NewBuilder(store, "logs_all")

	b.BuildAndStore(context.Background(), "dev1", "WARN",
		models.LogEventPayload{LogCode: "SPD", Message: "120", Timestamp: 1700000000000},
		"factory/dev1/log/WARN", testDevice)

	rec := store.inserts[1].record
	if rec.Timestamp != 1700000000000 {
		t.Errorf("timestamp = %d, want supplied value", rec.Timestamp)
	}
	if rec.IngestionTime == 1700000000000 {
		t.Error("ingestion_time must be current time, not the event timestamp")
	}
}

func TestBuildAndStoreMissingAttributes(t *testing.T) {
	store := &fakeStore{}
	b := NewBuilder(store, "logs_all")

	bare := &models.Device{ID: "dev2"}
	b.BuildAndStore(context.Background(), "dev2", "INFO",
		models.LogEventPayload{LogCode: models.LogCodeTemp, Message: "x"},
		"factory/dev2/log/INFO", bare)

	if len(store.inserts) != 1 {
		t.Fatalf("device without a group should only hit the aggregate collection, got %d inserts", len(store.inserts))
	}
	rec := store.inserts[0].record
	if rec.DeviceName != "N/A" || rec.DeviceType != "N/A" || rec.Location != "N/A" {
		t.Errorf("missing attributes not filled with sentinel: %+v", rec)
	}
	if !strings.HasPrefix(rec.ID, "NA-TMP-") {
		t.Errorf("id = %q, want NA device code prefix", rec.ID)
	}
	if rec.LogGroup != "unknown_group" {
		t.Errorf("log_group = %q", rec.LogGroup)
	}
	if rec.Severity != "UNKNOWN" {
		t.Errorf("severity = %q, want UNKNOWN for device without thresholds", rec.Severity)
	}
}

func TestBuildAndStoreGroupFailureStillWritesAggregate(t *testing.T) {
	store := &fakeStore{failOn: "logs_factory_line_a_robots"}
	b := NewBuilder(store, "logs_all")

	b.BuildAndStore(context.Background(), "dev1", "INFO",
		models.LogEventPayload{LogCode: "SPD", Message: "80"},
		"factory/dev1/log/INFO", testDevice)

	if len(store.inserts) != 2 {
		t.Fatalf("aggregate write must still be attempted, got %d inserts", len(store.inserts))
	}
	if store.inserts[1].collection != "logs_all" {
		t.Errorf("second insert = %q, want logs_all", store.inserts[1].collection)
	}
}

func TestGroupCollection(t *testing.T) {
	tests := []struct {
		group string
		want  string
	}{
		{"/factory/line-a/robots", "logs_factory_line_a_robots"},
		{"conveyors", "logs_conveyors"},
		{"line-b", "logs_line_b"},
	}
	for _, tt := range tests {
		if got := GroupCollection(tt.group); got != tt.want {
			t.Errorf("GroupCollection(%q) = %q, want %q", tt.group, got, tt.want)
		}
	}
}
