package dto

import "time"

// Decision is the gate's verdict for one interaction.
type Decision struct {
	Allowed  bool      `json:"allowed"`
	Admin    bool      `json:"admin"`
	Reason   string    `json:"reason,omitempty"`
	BannedAt time.Time `json:"banned_at,omitempty"`
}

type StatusKind string

const (
	StatusAdmin  StatusKind = "admin"
	StatusBanned StatusKind = "banned"
	StatusNormal StatusKind = "normal"
)

type UserStatus struct {
	UserID   int64      `json:"user_id"`
	Kind     StatusKind `json:"kind"`
	Reason   string     `json:"reason,omitempty"`
	BannedAt time.Time  `json:"banned_at,omitempty"`
}
