//go:build unix || darwin || linux || freebsd || openbsd || netbsd

// pkg/snapshot/mmap_unix.go
package snapshot

import (
	"errors"
	"os"
	"syscall"
)

// OpenMmap maps an existing snapshot file read-only for zero-copy
// decoding. The file must already exist and be non-empty: unlike
// pkg/pager's mapping, a snapshot is never grown in place; a new
// snapshot is always written out fresh by Encode and then opened.
func OpenMmap(path string) (*MmapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := stat.Size()
	if size == 0 {
		f.Close()
		return nil, errors.New("snapshot: cannot mmap empty file")
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &MmapFile{file: f, data: data, size: size}, nil
}

// Close unmaps and closes the underlying file.
func (m *MmapFile) Close() error {
	var firstErr error

	if m.data != nil {
		if err := syscall.Munmap(m.data); err != nil && firstErr == nil {
			firstErr = err
		}
		m.data = nil
	}
	if m.file != nil {
		f := m.file.(*os.File)
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.file = nil
	}
	return firstErr
}
