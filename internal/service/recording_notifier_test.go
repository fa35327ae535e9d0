package service_test

import (
	"sync"

	"github.com/google/uuid"
)

type unreadEvent struct {
	Recipient, Sender uuid.UUID
	Count             int64
}

type readEvent struct {
	Sender, Reader uuid.UUID
	Count          int64
}

// recordingNotifier captures events synchronously in call order
type recordingNotifier struct {
	mu     sync.Mutex
	unread []unreadEvent
	reads  []readEvent
}

func (n *recordingNotifier) Notify(recipientID, senderID uuid.UUID, newCount int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unread = append(n.unread, unreadEvent{recipientID, senderID, newCount})
}

func (n *recordingNotifier) NotifyRead(senderID, readerID uuid.UUID, count int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reads = append(n.reads, readEvent{senderID, readerID, count})
}

func (n *recordingNotifier) Unread() []unreadEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]unreadEvent(nil), n.unread...)
}

func (n *recordingNotifier) Reads() []readEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]readEvent(nil), n.reads...)
}

func (n *recordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unread = nil
	n.reads = nil
}
