package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/slotdb/internal/types"
)

// DiskManager owns one page file per table under a base directory. A
// table's page count is derived from file size, not a stored header —
// the design note on dual table files picks the pager-backed file as
// the single on-disk representation, so there is no separate *.heap file.
type DiskManager struct {
	baseDir string
	files   map[string]*os.File
}

func NewDiskManager(baseDir string) *DiskManager {
	return &DiskManager{baseDir: baseDir, files: make(map[string]*os.File)}
}

func tableFileName(table string) string {
	return fmt.Sprintf("table_%s.tbl", table)
}

func (d *DiskManager) fileFor(table string) (*os.File, error) {
	if f, ok := d.files[table]; ok {
		return f, nil
	}
	path := filepath.Join(d.baseDir, tableFileName(table))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", types.ErrIO, path, err)
	}
	d.files[table] = f
	return f, nil
}

// NumPages returns the current page count for a table, derived from file
// size, so allocation is always monotonic with respect to file length.
func (d *DiskManager) NumPages(table string) (uint64, error) {
	f, err := d.fileFor(table)
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %v", types.ErrIO, table, err)
	}
	return uint64(info.Size()) / PageSize, nil
}

// ReadPage reads page id from table's file. A read past EOF returns an
// initialized zero page with the expected id rather than an error.
func (d *DiskManager) ReadPage(table string, id uint64) (*Page, error) {
	f, err := d.fileFor(table)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, PageSize)
	n, err := f.ReadAt(buf, int64(id)*PageSize)
	if err != nil && n == 0 {
		return NewPage(id), nil
	}
	if n < PageSize {
		return NewPage(id), nil
	}
	return PageFromBytes(id, buf)
}

// WritePage writes a page at its id's offset, extending the file if needed.
func (d *DiskManager) WritePage(table string, page *Page) error {
	f, err := d.fileFor(table)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(page.Bytes(), int64(page.ID)*PageSize); err != nil {
		return fmt.Errorf("%w: write %s page %d: %v", types.ErrIO, table, page.ID, err)
	}
	return nil
}

// DeleteTableFile removes a table's on-disk page file entirely, used by
// DROP TABLE.
func (d *DiskManager) DeleteTableFile(table string) error {
	if f, ok := d.files[table]; ok {
		f.Close()
		delete(d.files, table)
	}
	path := filepath.Join(d.baseDir, tableFileName(table))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %v", types.ErrIO, path, err)
	}
	return nil
}

func (d *DiskManager) Close() error {
	var firstErr error
	for _, f := range d.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
