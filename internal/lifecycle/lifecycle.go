// Package lifecycle tracks which devices are suppressed. The shutdown set
// is durable: every change rewrites a line-oriented state file that is read
// back once at startup, so a restart keeps suppressed devices suppressed.
package lifecycle

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Gate owns the shutdown set. Message delivery is sequential, but the set
// is mutex-guarded so a concurrent dispatcher stays correct.
type Gate struct {
	mu       sync.Mutex
	shutdown map[string]struct{}
	path     string
}

// NewGate loads the persisted shutdown set from path. A missing file is an
// empty set, not an error.
func NewGate(path string) (*Gate, error) {
	g := &Gate{
		shutdown: make(map[string]struct{}),
		path:     path,
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return g, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			g.shutdown[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	log.Info().Int("devices", len(g.shutdown)).Str("file", path).Msg("Loaded shutdown devices")
	return g, nil
}

// Shutdown marks the device as suppressed. Returns true if the state
// changed; only a real transition rewrites the state file.
func (g *Gate) Shutdown(deviceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.shutdown[deviceID]; ok {
		return false
	}
	g.shutdown[deviceID] = struct{}{}
	g.save()

	log.Info().Str("device_id", deviceID).Msg("Device marked as shutdown")
	return true
}

// Activate removes the device from the shutdown set. Returns true if the
// state changed.
func (g *Gate) Activate(deviceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.shutdown[deviceID]; !ok {
		return false
	}
	delete(g.shutdown, deviceID)
	g.save()

	log.Info().Str("device_id", deviceID).Msg("Device started")
	return true
}

// IsShutdown reports whether events from the device are suppressed.
func (g *Gate) IsShutdown(deviceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.shutdown[deviceID]
	return ok
}

// save rewrites the full state file. Callers hold the mutex. A write
// failure loses durability but not the in-memory state, so it is logged
// and not propagated.
func (g *Gate) save() {
	var sb strings.Builder
	for id := range g.shutdown {
		sb.WriteString(id)
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(g.path, []byte(sb.String()), 0644); err != nil {
		log.Error().Err(err).Str("file", g.path).Msg("Failed to persist shutdown devices")
	}
}
