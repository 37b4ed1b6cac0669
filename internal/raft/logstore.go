package raft

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	hraft "github.com/hashicorp/raft"

	"github.com/cuemby/slotdb/internal/types"
)

const (
	logMagic    uint32 = 0x52414654 // "RAFT"
	headerSize         = 4 + 4 + 4 + 8 + 8 // magic, crc32, payload_len, index, term
)

// entryLocation records where one framed log entry sits in raft.log, so
// GetLog can read it back with a single ReadAt instead of rescanning.
type entryLocation struct {
	offset uint64
	length uint32
}

// encodedLog is the JSON payload framed by the [magic][crc32][len][index][term]
// header; hraft.Log's Index and Term are redundant with the header but
// kept here too so a payload read in isolation still decodes a complete Log.
type encodedLog struct {
	Index      uint64          `json:"index"`
	Term       uint64          `json:"term"`
	Type       hraft.LogType   `json:"type"`
	Data       []byte          `json:"data"`
	Extensions []byte          `json:"extensions,omitempty"`
}

// FileLogStore implements hraft.LogStore as the append-only, checksummed
// raft.log file described in §4.12: each entry is
// [magic u32][crc32 u32][payload_len u32][index u64][term u64][payload].
// Recovery (Open) scans forward and stops at the first bad magic or
// checksum, treating a torn tail as the end of the log rather than an error.
type FileLogStore struct {
	mu   sync.RWMutex
	path string
	file *os.File

	index      map[uint64]entryLocation
	firstIndex uint64
	lastIndex  uint64
}

// OpenLogStore opens (or creates) path, rebuilding the in-memory
// offset index by scanning every entry currently on disk.
func OpenLogStore(path string) (*FileLogStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", types.ErrRaft, path, err)
	}
	s := &FileLogStore{path: path, file: f, index: make(map[uint64]entryLocation)}
	if err := s.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *FileLogStore) rebuildIndex() error {
	r := bufio.NewReader(s.file)
	var offset uint64
	for {
		header := make([]byte, headerSize)
		n, err := io.ReadFull(r, header)
		if err != nil || n < headerSize {
			break // torn or absent header: stop, not an error
		}
		magic := binary.LittleEndian.Uint32(header[0:4])
		checksum := binary.LittleEndian.Uint32(header[4:8])
		length := binary.LittleEndian.Uint32(header[8:12])
		idx := binary.LittleEndian.Uint64(header[12:20])
		if magic != logMagic {
			break
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			break // torn payload
		}
		if crc32.ChecksumIEEE(payload) != checksum {
			break // corrupt tail
		}

		s.index[idx] = entryLocation{offset: offset, length: length}
		if s.firstIndex == 0 || idx < s.firstIndex {
			s.firstIndex = idx
		}
		if idx > s.lastIndex {
			s.lastIndex = idx
		}
		offset += uint64(headerSize) + uint64(length)
	}
	return nil
}

func (s *FileLogStore) FirstIndex() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstIndex, nil
}

func (s *FileLogStore) LastIndex() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastIndex, nil
}

func (s *FileLogStore) GetLog(index uint64, log *hraft.Log) error {
	s.mu.RLock()
	loc, ok := s.index[index]
	s.mu.RUnlock()
	if !ok {
		return hraft.ErrLogNotFound
	}

	payload := make([]byte, loc.length)
	if _, err := s.file.ReadAt(payload, int64(loc.offset)+headerSize); err != nil {
		return fmt.Errorf("%w: read log entry %d: %v", types.ErrRaft, index, err)
	}
	var enc encodedLog
	if err := json.Unmarshal(payload, &enc); err != nil {
		return fmt.Errorf("%w: decode log entry %d: %v", types.ErrRaft, index, err)
	}
	log.Index = enc.Index
	log.Term = enc.Term
	log.Type = enc.Type
	log.Data = enc.Data
	log.Extensions = enc.Extensions
	return nil
}

func (s *FileLogStore) StoreLog(log *hraft.Log) error {
	return s.StoreLogs([]*hraft.Log{log})
}

func (s *FileLogStore) StoreLogs(logs []*hraft.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", types.ErrRaft, s.path, err)
	}
	offset := uint64(info.Size())

	w := bufio.NewWriter(s.file)
	for _, l := range logs {
		payload, err := json.Marshal(encodedLog{Index: l.Index, Term: l.Term, Type: l.Type, Data: l.Data, Extensions: l.Extensions})
		if err != nil {
			return fmt.Errorf("%w: encode log entry %d: %v", types.ErrRaft, l.Index, err)
		}
		var header [headerSize]byte
		binary.LittleEndian.PutUint32(header[0:4], logMagic)
		binary.LittleEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(payload))
		binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
		binary.LittleEndian.PutUint64(header[12:20], l.Index)
		binary.LittleEndian.PutUint64(header[20:28], l.Term)

		if _, err := w.Write(header[:]); err != nil {
			return fmt.Errorf("%w: write log header: %v", types.ErrRaft, err)
		}
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("%w: write log payload: %v", types.ErrRaft, err)
		}

		s.index[l.Index] = entryLocation{offset: offset, length: uint32(len(payload))}
		if s.firstIndex == 0 || l.Index < s.firstIndex {
			s.firstIndex = l.Index
		}
		if l.Index > s.lastIndex {
			s.lastIndex = l.Index
		}
		offset += uint64(headerSize) + uint64(len(payload))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush log: %v", types.ErrRaft, err)
	}
	return s.file.Sync()
}

// DeleteRange drops entries in [min, max] from the in-memory index. The
// underlying file is left as-is — raft only calls this to trim the head
// after a snapshot or discard a failed append at the tail, and either
// way GetLog on a removed index correctly reports ErrLogNotFound without
// needing to physically compact the file.
func (s *FileLogStore) DeleteRange(min, max uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := min; i <= max; i++ {
		delete(s.index, i)
	}
	s.firstIndex, s.lastIndex = 0, 0
	for idx := range s.index {
		if s.firstIndex == 0 || idx < s.firstIndex {
			s.firstIndex = idx
		}
		if idx > s.lastIndex {
			s.lastIndex = idx
		}
	}
	return nil
}

func (s *FileLogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
