package service

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const lockStripes = 256

// pairLocks serializes work on one direction of a conversation.
// Distinct pairs may share a stripe, which only costs some contention.
type pairLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *pairLocks) lock(senderID, receiverID uuid.UUID) func() {
	var buf [32]byte
	copy(buf[:16], senderID[:])
	copy(buf[16:], receiverID[:])

	m := &l.stripes[xxhash.Sum64(buf[:])%lockStripes]
	m.Lock()
	return m.Unlock
}
