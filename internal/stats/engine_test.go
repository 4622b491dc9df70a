package stats

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/factory-monitor/monitor-server/internal/models"
	"github.com/factory-monitor/monitor-server/internal/storage"
)

const pattern = "factory/%s/msg/statistics"

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	messages []published
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.messages = append(f.messages, published{topic, payload})
	return nil
}

// reading is one qualifying speed log for the fake store.
type reading struct {
	deviceID  string
	value     int64
	timestamp int64
}

type fakeStore struct {
	storage.Store
	readings  []reading
	avgErr    error
	snapshots map[string]*models.StatisticsSnapshot
	saved     []*models.StatisticsSnapshot
}

func (f *fakeStore) qualifying(deviceID string, window models.TimeRange) []reading {
	var out []reading
	for _, r := range f.readings {
		if r.deviceID == deviceID && r.timestamp >= window.Start && r.timestamp <= window.End {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeStore) SpeedReadingDevices(_ context.Context, window models.TimeRange) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, r := range f.readings {
		if r.timestamp >= window.Start && r.timestamp <= window.End && !seen[r.deviceID] {
			seen[r.deviceID] = true
			ids = append(ids, r.deviceID)
		}
	}
	return ids, nil
}

func (f *fakeStore) AverageSpeed(_ context.Context, deviceID string, window models.TimeRange) (float64, int64, error) {
	if f.avgErr != nil {
		return 0, 0, f.avgErr
	}
	qualifying := f.qualifying(deviceID, window)
	if len(qualifying) == 0 {
		return 0, 0, nil
	}
	var sum int64
	for _, r := range qualifying {
		sum += r.value
	}
	return float64(sum) / float64(len(qualifying)), int64(len(qualifying)), nil
}

func (f *fakeStore) LatestSpeedReading(_ context.Context, deviceID string, window models.TimeRange) (string, error) {
	qualifying := f.qualifying(deviceID, window)
	if len(qualifying) == 0 {
		return "", storage.ErrNotFound
	}
	latest := qualifying[0]
	for _, r := range qualifying[1:] {
		if r.timestamp > latest.timestamp {
			latest = r
		}
	}
	return strconv.FormatInt(latest.value, 10), nil
}

func (f *fakeStore) SaveStatisticsSnapshot(_ context.Context, snapshot *models.StatisticsSnapshot) error {
	f.saved = append(f.saved, snapshot)
	return nil
}

func (f *fakeStore) LatestStatisticsSnapshot(_ context.Context, deviceID string) (*models.StatisticsSnapshot, error) {
	if snap, ok := f.snapshots[deviceID]; ok {
		return snap, nil
	}
	return nil, storage.ErrNotFound
}

func newTestEngine(store storage.Store, pub Publisher) *Engine {
	e := NewEngine(store, pub, 24*time.Hour, pattern)
	e.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return e
}

func request(t *testing.T, req models.StatisticsRequest) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestComputeAverageAndCurrent(t *testing.T) {
	store := &fakeStore{readings: []reading{
		{"dev1", 10, 1699999000000},
		{"dev1", 20, 1699999100000},
		{"dev1", 30, 1699999200000},
	}}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{
		DeviceID:  "dev1",
		RequestID: "r1",
	}))

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	if pub.messages[0].topic != "factory/dev1/msg/statistics" {
		t.Fatalf("topic = %q", pub.messages[0].topic)
	}

	var result models.StatisticsResult
	if err := json.Unmarshal(pub.messages[0].payload, &result); err != nil {
		t.Fatal(err)
	}
	if result.Average != 20 || result.CurrentSpeed != 30 || result.RequestID != "r1" {
		t.Fatalf("result = %+v", result)
	}
}

func TestComputeTruncatesAverage(t *testing.T) {
	store := &fakeStore{readings: []reading{
		{"dev1", 10, 1699999000000},
		{"dev1", 15, 1699999100000},
	}}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{DeviceID: "dev1"}))

	var result models.StatisticsResult
	json.Unmarshal(pub.messages[0].payload, &result)
	if result.Average != 12 {
		t.Fatalf("average = %d, want 12 (12.5 truncated)", result.Average)
	}
}

func TestComputeNoQualifyingReadings(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEngine(&fakeStore{}, pub)

	e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{DeviceID: "dev1"}))

	var result models.StatisticsResult
	json.Unmarshal(pub.messages[0].payload, &result)
	if result.Average != 0 || result.CurrentSpeed != 0 {
		t.Fatalf("result = %+v, want zeros", result)
	}
}

func TestComputeWindowExcludesOldReadings(t *testing.T) {
	store := &fakeStore{readings: []reading{
		{"dev1", 100, 1600000000000}, // far outside the trailing window
		{"dev1", 40, 1699999000000},
	}}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{DeviceID: "dev1"}))

	var result models.StatisticsResult
	json.Unmarshal(pub.messages[0].payload, &result)
	if result.Average != 40 || result.CurrentSpeed != 40 {
		t.Fatalf("result = %+v, old reading leaked into the window", result)
	}
}

func TestDuplicateRequestDropped(t *testing.T) {
	store := &fakeStore{readings: []reading{{"dev1", 10, 1699999000000}}}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	req := request(t, models.StatisticsRequest{DeviceID: "dev1", RequestID: "r1"})
	e.HandleRequest(context.Background(), req)
	e.HandleRequest(context.Background(), req)

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1 (duplicate dropped)", len(pub.messages))
	}
}

func TestDedupSlotForgetsOlderID(t *testing.T) {
	store := &fakeStore{readings: []reading{{"dev1", 10, 1699999000000}}}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	for _, id := range []string{"r1", "r2", "r1"} {
		e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{DeviceID: "dev1", RequestID: id}))
	}

	// r1 was forgotten when r2 arrived, so the second r1 runs again.
	if len(pub.messages) != 3 {
		t.Fatalf("published %d messages, want 3", len(pub.messages))
	}
}

func TestRequestsWithoutIDNeverDeduplicated(t *testing.T) {
	store := &fakeStore{readings: []reading{{"dev1", 10, 1699999000000}}}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	req := request(t, models.StatisticsRequest{DeviceID: "dev1"})
	e.HandleRequest(context.Background(), req)
	e.HandleRequest(context.Background(), req)

	if len(pub.messages) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.messages))
	}
}

func TestAllDevicesFanOut(t *testing.T) {
	store := &fakeStore{readings: []reading{
		{"dev1", 10, 1699999000000},
		{"dev2", 50, 1699999100000},
		{"dev2", 70, 1699999200000},
	}}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{
		DeviceID:  models.AllDevices,
		RequestID: "r9",
	}))

	if len(pub.messages) != 2 {
		t.Fatalf("published %d messages, want one per device", len(pub.messages))
	}

	byTopic := map[string]models.StatisticsResult{}
	for _, m := range pub.messages {
		var r models.StatisticsResult
		json.Unmarshal(m.payload, &r)
		byTopic[m.topic] = r
	}

	d1 := byTopic["factory/dev1/msg/statistics"]
	if d1.Average != 10 || d1.CurrentSpeed != 10 || d1.RequestID != "r9" {
		t.Fatalf("dev1 result = %+v", d1)
	}
	d2 := byTopic["factory/dev2/msg/statistics"]
	if d2.Average != 60 || d2.CurrentSpeed != 70 {
		t.Fatalf("dev2 result = %+v", d2)
	}
}

func TestSingleDeviceFailurePublishesErrorResult(t *testing.T) {
	store := &fakeStore{avgErr: errors.New("cursor timeout")}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{
		DeviceID:  "dev1",
		RequestID: "r1",
	}))

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1 error result", len(pub.messages))
	}
	var result models.StatisticsResult
	json.Unmarshal(pub.messages[0].payload, &result)
	if result.DeviceID != "dev1" || result.Error == "" || result.RequestID != "r1" {
		t.Fatalf("result = %+v", result)
	}
}

func TestSaveSnapshotPermissiveExtraction(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{
		DeviceID: "dev1",
		Action:   models.StatsActionSaveSnapshot,
		LogCode:  "SPD",
		Statistics: map[string]interface{}{
			"total":        100,
			"fail":         7,
			"failure_rate": 0.07,
			// "pass" missing on purpose
		},
	}))

	if len(store.saved) != 1 {
		t.Fatalf("saved %d snapshots, want 1", len(store.saved))
	}
	snap := store.saved[0]
	if snap.Statistics.Total != 100 || snap.Statistics.Fail != 7 || snap.Statistics.FailureRate != 0.07 {
		t.Fatalf("statistics = %+v", snap.Statistics)
	}
	if snap.Statistics.Pass != 0 {
		t.Fatalf("missing pass field must default to 0, got %d", snap.Statistics.Pass)
	}
	if len(snap.ID) != 26 {
		t.Fatalf("snapshot id = %q", snap.ID)
	}
	if snap.CreatedAt == 0 {
		t.Fatal("created_at must be set")
	}
}

func TestGetSnapshotNotFound(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEngine(&fakeStore{}, pub)

	e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{
		DeviceID: "dev1",
		Action:   models.StatsActionGetSnapshot,
	}))

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	if pub.messages[0].topic != "factory/dev1/msg/statistics" {
		t.Fatalf("topic = %q", pub.messages[0].topic)
	}

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	json.Unmarshal(pub.messages[0].payload, &resp)
	if resp.Status != "not_found" || resp.Message == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestGetSnapshotUsesResponseTopic(t *testing.T) {
	store := &fakeStore{snapshots: map[string]*models.StatisticsSnapshot{
		"dev1": {ID: "SNAP1", DeviceID: "dev1"},
	}}
	pub := &fakePublisher{}
	e := newTestEngine(store, pub)

	e.HandleRequest(context.Background(), request(t, models.StatisticsRequest{
		DeviceID:      "dev1",
		Action:        models.StatsActionGetSnapshot,
		ResponseTopic: "factory/dashboard/statistics",
	}))

	if pub.messages[0].topic != "factory/dashboard/statistics" {
		t.Fatalf("topic = %q", pub.messages[0].topic)
	}

	var resp struct {
		Status   string                     `json:"status"`
		Snapshot *models.StatisticsSnapshot `json:"snapshot"`
	}
	json.Unmarshal(pub.messages[0].payload, &resp)
	if resp.Status != "success" || resp.Snapshot == nil || resp.Snapshot.ID != "SNAP1" {
		t.Fatalf("response = %+v", resp)
	}
}
