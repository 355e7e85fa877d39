package domain

import "time"

// User carries the block state shared by the penalty sweep and admin actions.
type User struct {
	ID           string
	Username     string
	IsBlocked    bool
	BlockedUntil *time.Time
}

// BlockedAt reports whether the user is blocked at now. A block whose
// blocked_until has passed no longer applies even before the unblock sweep runs.
func (u User) BlockedAt(now time.Time) (bool, time.Time) {
	if !u.IsBlocked {
		return false, time.Time{}
	}
	if u.BlockedUntil == nil {
		return true, time.Time{}
	}
	if !u.BlockedUntil.After(now) {
		return false, time.Time{}
	}
	return true, *u.BlockedUntil
}

type BlockAction string

const (
	BlockActionBlocked       BlockAction = "blocked"
	BlockActionUnblocked     BlockAction = "unblocked"
	BlockActionAutoUnblocked BlockAction = "auto_unblocked"
)
