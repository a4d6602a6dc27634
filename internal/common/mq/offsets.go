package mq

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// offsetTracker records fetched offsets per partition and reports the highest
// offset whose predecessors have all completed. Messages are handled out of
// order across lanes, so committing a later offset early would lose work.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionOffsets
}

type partitionOffsets struct {
	pending []int64
	done    map[int64]kafka.Message
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[int]*partitionOffsets)}
}

func (t *offsetTracker) track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partitions[msg.Partition]
	if p == nil {
		p = &partitionOffsets{done: make(map[int64]kafka.Message)}
		t.partitions[msg.Partition] = p
	}
	p.pending = append(p.pending, msg.Offset)
}

// done marks msg complete and returns the message to commit, if the
// contiguous prefix of completed offsets advanced.
func (t *offsetTracker) done(msg kafka.Message) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partitions[msg.Partition]
	if p == nil {
		return msg, true
	}
	p.done[msg.Offset] = msg

	var commit kafka.Message
	advanced := false
	for len(p.pending) > 0 {
		head := p.pending[0]
		m, ok := p.done[head]
		if !ok {
			break
		}
		delete(p.done, head)
		p.pending = p.pending[1:]
		commit = m
		advanced = true
	}
	return commit, advanced
}

func (t *offsetTracker) inFlight(partition int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.partitions[partition]; p != nil {
		return len(p.pending)
	}
	return 0
}
