package locator

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoredRecord is a raw record together with when it was received.
type StoredRecord struct {
	Key        string    `json:"key"`
	Record     RawRecord `json:"record"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// EstimateRun is one published estimation result.
type EstimateRun struct {
	RunID      string    `json:"runId"`
	ComputedAt time.Time `json:"computedAt"`
	Result     Result    `json:"result"`
}

// ObservationStore keeps the latest record per observer for the HTTP and MQTT
// service paths. Records without an observer ID get a random key and are
// never replaced, only expired.
type ObservationStore struct {
	mu        sync.RWMutex
	records   map[string]StoredRecord
	latest    *EstimateRun
	maxAge    time.Duration
	cachePath string // empty disables persistence
	now       func() time.Time
	version   uint64 // bumped under mu on every record change

	saveMu       sync.Mutex
	savedVersion uint64
}

// NewObservationStore creates a store. A zero maxAge keeps records forever.
func NewObservationStore(maxAge time.Duration) *ObservationStore {
	return &ObservationStore{
		records: make(map[string]StoredRecord),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// NewObservationStoreWithCache creates a store that persists its records to
// cachePath. Records from an existing cache file are loaded on creation.
func NewObservationStoreWithCache(maxAge time.Duration, cachePath string) *ObservationStore {
	s := NewObservationStore(maxAge)
	s.cachePath = cachePath
	if cachePath != "" {
		if stored, err := LoadObservationSnapshot(cachePath); err == nil {
			for _, sr := range stored {
				s.records[sr.Key] = sr
			}
		}
	}
	return s
}

// Add stores records and returns the key each was stored under.
func (s *ObservationStore) Add(records []RawRecord) []string {
	s.mu.Lock()
	now := s.now()
	keys := make([]string, len(records))
	for i, rec := range records {
		key := rec.ID()
		if key == "" {
			key = uuid.NewString()
		}
		s.records[key] = StoredRecord{Key: key, Record: rec, ReceivedAt: now}
		keys[i] = key
	}
	snapshot, version := s.changedLocked()
	s.mu.Unlock()

	s.persist(snapshot, version)
	return keys
}

// changedLocked marks a record change and returns the snapshot to persist.
func (s *ObservationStore) changedLocked() ([]StoredRecord, uint64) {
	s.version++
	if s.cachePath == "" {
		return nil, s.version
	}
	return s.snapshotLocked(), s.version
}

// persist writes snapshot to the cache file unless a newer one is already
// on disk. Writers finishing out of order never roll the cache back.
func (s *ObservationStore) persist(snapshot []StoredRecord, version uint64) {
	if s.cachePath == "" {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if version <= s.savedVersion {
		return
	}
	if err := SaveObservationSnapshot(snapshot, s.cachePath); err != nil {
		log.Printf("warning: failed to save observation cache: %v", err)
		return
	}
	s.savedVersion = version
}

// Records returns the unexpired records, oldest first. Ties are ordered by
// key so the result is deterministic.
func (s *ObservationStore) Records() []RawRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.snapshotLocked()
	records := make([]RawRecord, 0, len(stored))
	cutoff := s.cutoff()
	for _, sr := range stored {
		if !cutoff.IsZero() && sr.ReceivedAt.Before(cutoff) {
			continue
		}
		records = append(records, sr.Record)
	}
	return records
}

// Len returns the number of stored records, including expired ones not yet
// pruned.
func (s *ObservationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Prune drops expired records and returns how many were removed. The cache
// file is rewritten when anything was removed.
func (s *ObservationStore) Prune() int {
	s.mu.Lock()
	cutoff := s.cutoff()
	if cutoff.IsZero() {
		s.mu.Unlock()
		return 0
	}
	removed := 0
	for key, sr := range s.records {
		if sr.ReceivedAt.Before(cutoff) {
			delete(s.records, key)
			removed++
		}
	}
	if removed == 0 {
		s.mu.Unlock()
		return 0
	}
	snapshot, version := s.changedLocked()
	s.mu.Unlock()

	s.persist(snapshot, version)
	return removed
}

// Clear removes every stored record and the latest result.
func (s *ObservationStore) Clear() {
	s.mu.Lock()
	s.records = make(map[string]StoredRecord)
	s.latest = nil
	snapshot, version := s.changedLocked()
	s.mu.Unlock()

	s.persist(snapshot, version)
}

// Sightings returns the unexpired stored records, oldest first. With
// non-nil bounds only records whose origin lies inside are returned.
func (s *ObservationStore) Sightings(bounds *Bounds) []StoredRecord {
	return s.filter(func(origin LatLon) bool {
		return bounds == nil || bounds.Contains(origin)
	}, bounds == nil)
}

// Near returns the unexpired stored records whose origin is within
// tolerance degrees of ll on both axes, oldest first.
func (s *ObservationStore) Near(ll LatLon, tolerance float64) []StoredRecord {
	return s.filter(func(origin LatLon) bool {
		return math.Abs(origin.Lat-ll.Lat) <= tolerance && math.Abs(origin.Lon-ll.Lon) <= tolerance
	}, false)
}

// filter returns unexpired records whose origin satisfies keep. Records
// without a readable origin are returned only when keepUnplaced is set.
func (s *ObservationStore) filter(keep func(LatLon) bool, keepUnplaced bool) []StoredRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.cutoff()
	var out []StoredRecord
	for _, sr := range s.snapshotLocked() {
		if !cutoff.IsZero() && sr.ReceivedAt.Before(cutoff) {
			continue
		}
		origin, err := sr.Record.Origin()
		if err != nil {
			if keepUnplaced {
				out = append(out, sr)
			}
			continue
		}
		if keep(origin) {
			out = append(out, sr)
		}
	}
	return out
}

// SetLatest records the most recent estimation result under a new run ID and
// returns it.
func (s *ObservationStore) SetLatest(result Result) EstimateRun {
	run := EstimateRun{
		RunID:      uuid.NewString(),
		ComputedAt: s.now(),
		Result:     result,
	}
	s.mu.Lock()
	s.latest = &run
	s.mu.Unlock()
	return run
}

// Latest returns a copy of the most recent estimation result, if any.
func (s *ObservationStore) Latest() (EstimateRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return EstimateRun{}, false
	}
	return *s.latest, true
}

func (s *ObservationStore) cutoff() time.Time {
	if s.maxAge <= 0 {
		return time.Time{}
	}
	return s.now().Add(-s.maxAge)
}

func (s *ObservationStore) snapshotLocked() []StoredRecord {
	stored := make([]StoredRecord, 0, len(s.records))
	for _, sr := range s.records {
		stored = append(stored, sr)
	}
	sort.Slice(stored, func(i, j int) bool {
		if !stored[i].ReceivedAt.Equal(stored[j].ReceivedAt) {
			return stored[i].ReceivedAt.Before(stored[j].ReceivedAt)
		}
		return stored[i].Key < stored[j].Key
	})
	return stored
}

// SaveObservationSnapshot writes stored records to disk as JSON.
func SaveObservationSnapshot(stored []StoredRecord, path string) error {
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal observations: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write observation cache: %w", err)
	}
	return nil
}

// LoadObservationSnapshot reads stored records from a JSON file on disk.
func LoadObservationSnapshot(path string) ([]StoredRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read observation cache: %w", err)
	}
	var stored []StoredRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal observation cache: %w", err)
	}
	return stored, nil
}
