package storage

import (
	"time"
)

// CycleRecord is the persisted summary of one monitoring cycle.
type CycleRecord struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Alerted    int
	Dispatched int
	Failed     int
	Simulated  bool
	Status     string
	Error      *string
	CreatedAt  time.Time
}

// DispatchRecord is the persisted per-subscriber outcome of one cycle.
type DispatchRecord struct {
	ID               int64
	CycleID          int64
	Subscriber       string
	Alerted          bool
	Dispatched       bool
	PercentRemaining int64
	TxHash           *string
	ContentRef       *string
	Error            *string
	ErrorKind        *string
	CreatedAt        time.Time
}
