package raft

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	hraft "github.com/hashicorp/raft"

	"github.com/cuemby/slotdb/internal/types"
)

// snapMeta is the JSON metadata prefix of one snapshots/*.snap file.
type snapMeta struct {
	ID                 string             `json:"id"`
	Index              uint64             `json:"index"`
	Term               uint64             `json:"term"`
	ConfigurationIndex uint64             `json:"configuration_index"`
	Configuration      hraft.Configuration `json:"configuration"`
	Size               int64              `json:"size"`
}

// FileSnapshotStore implements hraft.SnapshotStore as the
// snapshots/{term}_{index}_{snap_idx}.snap layout from §4.12: each file is
// [meta_len u32 LE][meta JSON][data]. List returns the snapshots ordered
// by index, highest first; the order among equal indexes is not defined.
type FileSnapshotStore struct {
	mu      sync.Mutex
	dir     string
	counter uint64
}

func OpenSnapshotStore(dataDir string) (*FileSnapshotStore, error) {
	dir := filepath.Join(dataDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create snapshot dir %s: %v", types.ErrRaft, dir, err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

func (s *FileSnapshotStore) Create(version hraft.SnapshotVersion, index, term uint64, configuration hraft.Configuration, configurationIndex uint64, _ hraft.Transport) (hraft.SnapshotSink, error) {
	s.mu.Lock()
	s.counter++
	snapIdx := s.counter
	s.mu.Unlock()

	id := fmt.Sprintf("%d_%d_%d", term, index, snapIdx)
	path := filepath.Join(s.dir, id+".snap")
	meta := snapMeta{ID: id, Index: index, Term: term, ConfigurationIndex: configurationIndex, Configuration: configuration}
	return &snapshotSink{finalPath: path, meta: meta}, nil
}

func (s *FileSnapshotStore) List() ([]*hraft.SnapshotMeta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", types.ErrRaft, s.dir, err)
	}

	var metas []*hraft.SnapshotMeta
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".snap" {
			continue
		}
		meta, _, err := s.readMeta(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue // a torn snapshot file is skipped, not fatal
		}
		metas = append(metas, &hraft.SnapshotMeta{
			Version:            hraft.SnapshotVersionMax,
			ID:                 meta.ID,
			Index:              meta.Index,
			Term:               meta.Term,
			Configuration:      meta.Configuration,
			ConfigurationIndex: meta.ConfigurationIndex,
			Size:               meta.Size,
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Index > metas[j].Index })
	return metas, nil
}

func (s *FileSnapshotStore) Open(id string) (*hraft.SnapshotMeta, io.ReadCloser, error) {
	path := filepath.Join(s.dir, id+".snap")
	meta, dataOffset, err := s.readMeta(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open snapshot %s: %v", types.ErrRaft, path, err)
	}
	if _, err := f.Seek(dataOffset, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: seek snapshot %s: %v", types.ErrRaft, path, err)
	}
	return &hraft.SnapshotMeta{
		Version:            hraft.SnapshotVersionMax,
		ID:                 meta.ID,
		Index:              meta.Index,
		Term:               meta.Term,
		Configuration:       meta.Configuration,
		ConfigurationIndex: meta.ConfigurationIndex,
		Size:               meta.Size,
	}, f, nil
}

// readMeta reads the [meta_len][meta JSON] prefix of path, returning the
// decoded meta and the byte offset where the state-machine payload begins.
func (s *FileSnapshotStore) readMeta(path string) (snapMeta, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return snapMeta{}, 0, fmt.Errorf("%w: open %s: %v", types.ErrRaft, path, err)
	}
	defer f.Close()

	var lenBuf [4]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return snapMeta{}, 0, fmt.Errorf("%w: read meta length %s: %v", types.ErrRaft, path, err)
	}
	metaLen := binary.LittleEndian.Uint32(lenBuf[:])
	metaBuf := make([]byte, metaLen)
	if _, err := io.ReadFull(f, metaBuf); err != nil {
		return snapMeta{}, 0, fmt.Errorf("%w: read meta %s: %v", types.ErrRaft, path, err)
	}
	var meta snapMeta
	if err := json.Unmarshal(metaBuf, &meta); err != nil {
		return snapMeta{}, 0, fmt.Errorf("%w: decode meta %s: %v", types.ErrRaft, path, err)
	}
	return meta, int64(4 + metaLen), nil
}

// snapshotSink buffers the state-machine payload in memory as Persist
// writes it, then writes [meta_len][meta][data] to a temp file and
// renames it into place on Close — so a crash mid-write never leaves a
// partially-written snapshot visible to List/Open.
type snapshotSink struct {
	finalPath string
	meta      snapMeta
	buf       bytes.Buffer
}

func (sink *snapshotSink) Write(p []byte) (int, error) { return sink.buf.Write(p) }

func (sink *snapshotSink) ID() string { return sink.meta.ID }

func (sink *snapshotSink) Close() error {
	sink.meta.Size = int64(sink.buf.Len())
	metaBytes, err := json.Marshal(sink.meta)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot meta: %v", types.ErrRaft, err)
	}

	tmpPath := sink.finalPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: create snapshot temp file: %v", types.ErrRaft, err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(metaBytes)))
	if _, err := out.Write(lenBuf[:]); err != nil {
		out.Close()
		return fmt.Errorf("%w: write snapshot meta length: %v", types.ErrRaft, err)
	}
	if _, err := out.Write(metaBytes); err != nil {
		out.Close()
		return fmt.Errorf("%w: write snapshot meta: %v", types.ErrRaft, err)
	}
	if _, err := out.Write(sink.buf.Bytes()); err != nil {
		out.Close()
		return fmt.Errorf("%w: write snapshot data: %v", types.ErrRaft, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close snapshot file: %v", types.ErrRaft, err)
	}
	return os.Rename(tmpPath, sink.finalPath)
}

// Cancel discards the buffered payload; Close never ran, so no temp file
// was ever created on disk.
func (sink *snapshotSink) Cancel() error {
	sink.buf.Reset()
	return nil
}
