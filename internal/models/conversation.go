package models

import "github.com/google/uuid"

// ConversationSummary is one row of a user's conversation list.
// It is derived from messages, never stored.
type ConversationSummary struct {
	Counterpart User
	LastMessage Message
	UnreadCount int64
	IsOnline    bool
}

// HistoryQuery selects a page of a conversation.
// After and Before are message ids; zero means unset.
type HistoryQuery struct {
	After  uint64
	Before uint64
	Limit  int
}

// HistoryPage is a page of messages in ascending order.
// NextCursor is the id to pass as After (forward paging) or Before
// (backward paging) to continue; zero when HasMore is false.
type HistoryPage struct {
	Messages   []Message
	HasMore    bool
	NextCursor uint64
}

// UnreadSummary is the badge view for one recipient
type UnreadSummary struct {
	Total    int64
	BySender map[uuid.UUID]int64
}
