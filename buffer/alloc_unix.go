//go:build unix

package buffer

import "golang.org/x/sys/unix"

// Slabs are anonymous private mappings outside the Go heap.
func allocate(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func deallocate(mem []byte) error {
	return unix.Munmap(mem)
}
