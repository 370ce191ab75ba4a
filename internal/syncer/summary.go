package syncer

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-mobile/pkg/errors"
)

// EntityError pins a push failure to the entity that caused it.
type EntityError struct {
	Entity string
	Key    string
	Err    error
}

func (e EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Entity, e.Key, e.Err)
}

func (e EntityError) Unwrap() error {
	return e.Err
}

// Summary aggregates what one reconciliation pass accomplished. A pass with
// failures still reports the progress it made; callers inspect Failures to
// decide whether to retry immediately or wait for the next trigger.
type Summary struct {
	Created        int
	Updated        int
	Deleted        int
	ImagesUploaded int
	Failures       []EntityError
}

func (s *Summary) count(action enums.SyncAction) {
	switch action {
	case enums.SyncActionCreate:
		s.Created++
	case enums.SyncActionUpdate:
		s.Updated++
	case enums.SyncActionDelete:
		s.Deleted++
	}
}

// Dirty reports whether any entity failed and remains dirty.
func (s Summary) Dirty() bool {
	return len(s.Failures) > 0
}

// Pushed counts the confirmed pushes in the pass.
func (s Summary) Pushed() int {
	return s.Created + s.Updated + s.Deleted
}

// Err folds the per-entity failures into one error, or nil on a clean pass.
func (s Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	var combined error
	for _, failure := range s.Failures {
		combined = multierr.Append(combined, failure)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, combined,
		fmt.Sprintf("sync pass completed with %d failed entities", len(s.Failures)))
}

// Retryable reports whether every recorded failure was connectivity-related,
// meaning an immediate retry once the network returns is worthwhile.
func (s Summary) Retryable() bool {
	if len(s.Failures) == 0 {
		return false
	}
	for _, failure := range s.Failures {
		if !pkgerrors.HasCode(failure.Err, pkgerrors.CodeNetworkUnreachable) {
			return false
		}
	}
	return true
}
