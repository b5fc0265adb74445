package engine

import (
	"sync"
	"time"
)

// WorkStats counts what one node did. Bytes and messages are cumulative.
type WorkStats struct {
	Node             string
	NumWorkCalls     uint64
	NumWorkErrors    uint64
	BytesConsumed    uint64
	BytesProduced    uint64
	MsgsConsumed     uint64
	MsgsProduced     uint64
	LabelsProduced   uint64
	LabelsPropagated uint64
	SlotCalls        uint64
	TotalWorkTime    time.Duration
	TimeLastWork     time.Time
	TimeLastConsumed time.Time
	TimeLastProduced time.Time
}

type statsCell struct {
	mu sync.Mutex
	s  WorkStats
}

func (c *statsCell) update(fn func(*WorkStats)) {
	c.mu.Lock()
	fn(&c.s)
	c.mu.Unlock()
}

func (c *statsCell) snapshot() WorkStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
