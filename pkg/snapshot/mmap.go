// pkg/snapshot/mmap.go
package snapshot

// MmapFile is a read-only memory mapping of an entire snapshot file.
// Platform-specific implementations live in mmap_unix.go and
// mmap_windows.go, adapted from pkg/pager's page-oriented mapping to a
// single whole-file mapping. A snapshot has no fixed page size to
// align to, so there is nothing to page-index here.
type MmapFile struct {
	file interface{} // *os.File on Unix, windows.Handle on Windows
	data []byte
	size int64
}

// Size returns the mapped file's size in bytes.
func (m *MmapFile) Size() int64 {
	return m.size
}

// Bytes returns the entire mapped region. The returned slice is valid
// until Close is called; callers that need the data to outlive the
// mapping must copy it.
func (m *MmapFile) Bytes() []byte {
	return m.data
}
