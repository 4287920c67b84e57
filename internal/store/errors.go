package store

import "errors"

// ErrConflict marks a write that lost a race inside the database (serialization
// failure, deadlock, lock timeout). The whole transaction may be retried.
var ErrConflict = errors.New("store conflict")

// IsConflict reports whether err is safe to retry from the top of the transaction.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
