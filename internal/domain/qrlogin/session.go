package qrlogin

import "time"

// Status tracks the lifecycle of a QR login session as seen by the desktop.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusWaiting    Status = "waiting"
	StatusScanned    Status = "scanned"
	StatusConfirmed  Status = "confirmed"
	StatusExpired    Status = "expired"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Session holds the server-assigned identity of one QR login attempt plus its
// rendered code. Exactly one session is active per coordinator at a time;
// superseded sessions are discarded, never merged.
type Session struct {
	ID        string
	Payload   string
	PNG       []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}
