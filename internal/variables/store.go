// File: internal/variables/store.go
package variables

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the cross-step state of a single run. One Store is created per run and
// shared by reference with every component of that run. Last write wins.
type Store struct {
	mu        sync.RWMutex
	values    map[string]any
	startedAt time.Time
	logger    *zap.Logger
	now       func() time.Time
}

// NewStore creates an empty store. A nil logger disables diagnostics.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		values: make(map[string]any),
		logger: logger.Named("variables"),
		now:    time.Now,
	}
	s.startedAt = s.now()
	return s
}

// Set inserts or overwrites name. There is no merging of structured values.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
	s.logger.Debug("Variable stored.", zap.String("name", name), zap.Any("value", value))
}

// Get returns the value stored under name and whether it exists.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	value, ok := s.values[name]
	s.mu.RUnlock()
	if ok {
		s.logger.Debug("Variable read.", zap.String("name", name), zap.Any("value", value))
	} else {
		s.logger.Debug("Variable not found.", zap.String("name", name))
	}
	return value, ok
}

func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[name]
	return ok
}

func (s *Store) Remove(name string) {
	s.mu.Lock()
	delete(s.values, name)
	s.mu.Unlock()
	s.logger.Debug("Variable removed.", zap.String("name", name))
}

// Clear empties the store and restarts the execution clock.
func (s *Store) Clear() {
	s.mu.Lock()
	s.values = make(map[string]any)
	s.startedAt = s.now()
	s.mu.Unlock()
	s.logger.Debug("Variable store cleared.")
}

// Snapshot returns a copy of every entry. Mutating the result does not affect the store.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Names returns the stored names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Elapsed is the time since the store was created or last cleared.
func (s *Store) Elapsed() time.Duration {
	s.mu.RLock()
	started := s.startedAt
	s.mu.RUnlock()
	return s.now().Sub(started)
}

// LogSnapshot writes every entry to the logger at info level, sorted by name.
func (s *Store) LogSnapshot() {
	snapshot := s.Snapshot()
	s.logger.Info("Variable store contents.", zap.Int("count", len(snapshot)), zap.Duration("elapsed", s.Elapsed()))
	for _, name := range s.Names() {
		s.logger.Info("Variable.", zap.String("name", name), zap.String("value", Format(snapshot[name])))
	}
}
