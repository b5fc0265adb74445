//go:build !unix

package buffer

func allocate(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func deallocate(mem []byte) error {
	return nil
}
