package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is the default Store: a JSON file of tokens read on startup and
// rewritten on every usage update, following the teacher's own cached-JSON
// persistence idiom (internal/core/auth/token.go's LoadAuth/SaveAuth). A
// production deployment backed by a real database satisfies the same Store
// interface without touching Verify or Tracker.
type FileStore struct {
	path string

	mu     sync.Mutex
	tokens map[string]*TokenData
}

// NewFileStore loads (or lazily creates) a token store persisted at path.
// An empty path disables persistence: usage updates are kept in memory
// only, useful for tests and for running the gateway without quotas
// configured. It returns the concrete type (rather than the Store
// interface) so callers can also reach Seed to provision tokens.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, tokens: make(map[string]*TokenData)}
	if path == "" {
		return fs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("quota: read store %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &fs.tokens); err != nil {
		return nil, fmt.Errorf("quota: parse store %s: %w", path, err)
	}
	return fs, nil
}

func (s *FileStore) GetAPIToken(ctx context.Context, token string) (*TokenData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.tokens[token]
	if !ok {
		return nil, nil
	}
	clone := *data
	return &clone, nil
}

func (s *FileStore) UpdateTokenUsage(ctx context.Context, token string, deltaBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.tokens[token]
	if !ok {
		return fmt.Errorf("quota: update usage: unknown token")
	}
	data.Daily.Bytes += deltaBytes
	data.Monthly.Bytes += deltaBytes

	return s.persistLocked()
}

// Seed registers or replaces a token's configuration in memory (it does not
// persist until the next usage update). It is not part of the Store
// interface since provisioning tokens is out of the streaming core's scope,
// and neither config loading nor the gateway itself calls it.
func (s *FileStore) Seed(token string, dailyLimitGB, monthlyLimitGB float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = &TokenData{
		Token:          token,
		DailyLimitGB:   dailyLimitGB,
		MonthlyLimitGB: monthlyLimitGB,
	}
}

func (s *FileStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("quota: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(s.tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("quota: marshal: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}
