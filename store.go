package raidguard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStateStore keeps the lockdown map and the security configuration as two
// independent JSON documents on disk. Both survive restarts; each mutation
// rewrites its whole document (no partial or append writes).
type FileStateStore struct {
	mu           sync.Mutex
	lockdownPath string
	configPath   string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileStateStore creates the data directory if needed and returns a store
// rooted there.
func NewFileStateStore(dir string) (*FileStateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStateStore{
		lockdownPath: filepath.Join(dir, "lockdown_state.json"),
		configPath:   filepath.Join(dir, "security_config.json"),
	}, nil
}

func (s *FileStateStore) LoadLockdowns() (map[string]*LockdownRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make(map[string]*LockdownRecord)
	data, err := os.ReadFile(s.lockdownPath)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("read lockdown state: %w", err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse lockdown state: %w", err)
	}
	return records, nil
}

func (s *FileStateStore) SaveLockdowns(records map[string]*LockdownRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeDoc(s.lockdownPath, records)
}

// LoadSecurityConfig reads the config document and back-fills missing keys
// from the defaults. Returns nil when no document exists yet.
func (s *FileStateStore) LoadSecurityConfig() (*SecurityConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readConfig()
}

func (s *FileStateStore) readConfig() (*SecurityConfig, error) {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read security config: %w", err)
	}
	var doc securityConfigDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse security config: %w", err)
	}
	cfg := DefaultSecurityConfig()
	doc.merge(&cfg)
	return &cfg, nil
}

func (s *FileStateStore) SaveSecurityConfig(cfg *SecurityConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeDoc(s.configPath, cfg)
}

// writeDoc rewrites a document in full, via a temp file so a crash mid-write
// never leaves a truncated document behind.
func (s *FileStateStore) writeDoc(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WatchSecurityConfig invokes onChange with the merged document whenever the
// security config file is edited externally. Unparsable edits are skipped.
func (s *FileStateStore) WatchSecurityConfig(onChange func(SecurityConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	done := make(chan struct{})
	s.mu.Lock()
	s.watcher = watcher
	s.done = done
	s.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.configPath {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				s.mu.Lock()
				cfg, err := s.readConfig()
				s.mu.Unlock()
				if err != nil || cfg == nil {
					continue
				}
				onChange(*cfg)
			case <-watcher.Errors:
				// watcher errors are non-fatal; the next event still arrives
			case <-done:
				return
			}
		}
	}()
	return nil
}

// Close stops the config watcher if one was started. Safe to call in any
// order with WatchSecurityConfig, and more than once.
func (s *FileStateStore) Close() error {
	s.mu.Lock()
	done, watcher := s.done, s.watcher
	s.done, s.watcher = nil, nil
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}
