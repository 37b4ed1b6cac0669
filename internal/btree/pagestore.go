package btree

import (
	"fmt"
	"os"

	"github.com/cuemby/slotdb/internal/storage"
	"github.com/cuemby/slotdb/internal/types"
)

// pageStore is the direct, unbuffered page file an index opens for
// itself — secondary-index files are opened by the statement that needs
// them rather than routed through the shared buffer pool, so concurrent
// index access across statements is not supported, matching the
// single-writer model's scope.
type pageStore struct {
	file *os.File
}

func openPageStore(path string) (*pageStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open index file %s: %v", types.ErrStorage, path, err)
	}
	return &pageStore{file: f}, nil
}

func (s *pageStore) numPages() (uint64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat index file: %v", types.ErrStorage, err)
	}
	return uint64(info.Size()) / storage.PageSize, nil
}

func (s *pageStore) readPage(id uint64) (*storage.Page, error) {
	buf := make([]byte, storage.PageSize)
	n, err := s.file.ReadAt(buf, int64(id)*storage.PageSize)
	if err != nil && n == 0 {
		return storage.NewPage(id), nil
	}
	if n < storage.PageSize {
		return storage.NewPage(id), nil
	}
	return storage.PageFromBytes(id, buf)
}

func (s *pageStore) writePage(p *storage.Page) error {
	if _, err := s.file.WriteAt(p.Bytes(), int64(p.ID)*storage.PageSize); err != nil {
		return fmt.Errorf("%w: write index page %d: %v", types.ErrStorage, p.ID, err)
	}
	return nil
}

// allocatePage extends the file with a fresh zero page and returns it.
func (s *pageStore) allocatePage() (*storage.Page, error) {
	n, err := s.numPages()
	if err != nil {
		return nil, err
	}
	p := storage.NewPage(n)
	if err := s.writePage(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *pageStore) close() error {
	return s.file.Close()
}
