package model

import "time"

// SearchQuery holds optional filters for scanning buffered entries.
// Zero values mean "no filter"; Limit <= 0 means no cap.
type SearchQuery struct {
	Text   string
	Level  Level
	Source Source
	Start  time.Time
	End    time.Time
	Limit  int
}

// EntryReader is the read-side contract on the correlation buffer.
// Entries returns the group for one correlation id sorted ascending by
// timestamp; a missing id yields an empty slice, never an error.
type EntryReader interface {
	Entries(correlationID string) []LogEntry
	Search(q SearchQuery) []LogEntry
}
