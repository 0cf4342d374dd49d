package errs

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalid        = errors.New("invalid")
	ErrConflict       = errors.New("conflict")
	ErrTooMany        = errors.New("too many requests")
	ErrInternal       = errors.New("internal")
	ErrScopeViolation = errors.New("tenant scope violation")
	ErrUnavailable    = errors.New("capability unavailable")
	ErrAuditWrite     = errors.New("audit write failure")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsScopeViolation(err error) bool {
	return errors.Is(err, ErrScopeViolation)
}
