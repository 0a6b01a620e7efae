package driven

import "time"

// StateStore defines the driven port for the small amount of state carried
// between bridge invocations.
type StateStore interface {
	// LastCommit returns the commit id of the last successful sync, or the
	// empty string when no sync ran yet.
	LastCommit() (string, error)
	SetLastCommit(id string) error

	// LastSyncTime returns when the last sync finished, or the zero time when
	// no sync ran yet.
	LastSyncTime() (time.Time, error)
	SetLastSyncTime(t time.Time) error
}
