package enums

import "fmt"

// SyncState tracks how a cached row relates to the remote source of truth.
type SyncState string

const (
	SyncStateClean         SyncState = "clean"
	SyncStatePendingCreate SyncState = "pending_create"
	SyncStatePendingUpdate SyncState = "pending_update"
	SyncStatePendingDelete SyncState = "pending_delete"
)

var validSyncStates = []SyncState{
	SyncStateClean,
	SyncStatePendingCreate,
	SyncStatePendingUpdate,
	SyncStatePendingDelete,
}

// String implements fmt.Stringer.
func (s SyncState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SyncState.
func (s SyncState) IsValid() bool {
	for _, candidate := range validSyncStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsDirty reports whether the state still awaits a remote push.
func (s SyncState) IsDirty() bool {
	return s == SyncStatePendingCreate || s == SyncStatePendingUpdate || s == SyncStatePendingDelete
}

// ParseSyncState converts raw input into a SyncState.
func ParseSyncState(value string) (SyncState, error) {
	for _, candidate := range validSyncStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync state %q", value)
}
