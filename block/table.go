package block

import (
	"sync"
	"sync/atomic"
)

// The native side holds a block only by id. The table is the single
// strong reference; Destroy removes the entry, after which the id is
// stale.
var table = struct {
	sync.RWMutex
	blocks map[uint64]*Base
}{blocks: make(map[uint64]*Base)}

var lastID atomic.Uint64

func register(b *Base) uint64 {
	id := lastID.Add(1)
	table.Lock()
	table.blocks[id] = b
	table.Unlock()
	return id
}

func forget(id uint64) {
	table.Lock()
	delete(table.blocks, id)
	table.Unlock()
}

// Resolve follows a back-reference.
func Resolve(id uint64) (*Base, error) {
	table.RLock()
	b, ok := table.blocks[id]
	table.RUnlock()
	if !ok {
		return nil, &StaleReferenceError{ID: id}
	}
	return b, nil
}

// Live is the number of blocks not yet destroyed.
func Live() int {
	table.RLock()
	defer table.RUnlock()
	return len(table.blocks)
}
