package raft

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	natomic "github.com/natefinch/atomic"

	"github.com/cuemby/slotdb/internal/types"
)

// stableDocument is the on-disk shape of raft_state.json: hashicorp/raft
// uses StableStore for both small binary blobs (stored under string keys
// like "CurrentTerm", "LastVoteTerm", "LastVoteCand") and uint64 counters,
// so both are kept in one JSON document, rewritten atomically on every Set.
type stableDocument struct {
	Values  map[string][]byte `json:"values,omitempty"`
	Uint64s map[string]uint64 `json:"uint64s,omitempty"`
}

// FileStableStore implements hraft.StableStore as raft_state.json,
// updated via write-temp-then-rename so a crash never leaves a torn file
// (§4.12, §9's "Catalog durability" note applied to Raft's own state).
type FileStableStore struct {
	mu   sync.Mutex
	path string
	doc  stableDocument
}

func OpenStableStore(path string) (*FileStableStore, error) {
	s := &FileStableStore{path: path, doc: stableDocument{Values: map[string][]byte{}, Uint64s: map[string]uint64{}}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrRaft, path, err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", types.ErrRaft, path, err)
	}
	if s.doc.Values == nil {
		s.doc.Values = map[string][]byte{}
	}
	if s.doc.Uint64s == nil {
		s.doc.Uint64s = map[string]uint64{}
	}
	return s, nil
}

func (s *FileStableStore) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", types.ErrRaft, s.path, err)
	}
	if err := natomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write %s: %v", types.ErrRaft, s.path, err)
	}
	return nil
}

func (s *FileStableStore) Set(key []byte, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Values[string(key)] = val
	return s.save()
}

func (s *FileStableStore) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.doc.Values[string(key)]
	if !ok {
		return nil, fmt.Errorf("%w: no value for key %q", types.ErrRaft, key)
	}
	return v, nil
}

func (s *FileStableStore) SetUint64(key []byte, val uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Uint64s[string(key)] = val
	return s.save()
}

func (s *FileStableStore) GetUint64(key []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Uint64s[string(key)], nil
}
