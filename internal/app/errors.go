package app

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateSlug     = errors.New("slug already in use")
	ErrDuplicateName     = errors.New("name already in use")
	ErrUsernameExists    = errors.New("username already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)

// ForbiddenFieldsError reports admin-only fields a non-admin tried to set.
// It matches errors.Is(err, ErrForbidden).
type ForbiddenFieldsError struct {
	Fields []string
}

func (e *ForbiddenFieldsError) Error() string {
	return fmt.Sprintf("fields restricted to admins: %s", strings.Join(e.Fields, ", "))
}

func (e *ForbiddenFieldsError) Is(target error) bool {
	return target == ErrForbidden
}

// PartialFailureError reports a reconciliation run that could not resolve
// every row. RowIDs lists the rows left in their prior state so the caller
// can re-submit exactly those; completed phases stand.
type PartialFailureError struct {
	Phase  string
	RowIDs []uint
	Err    error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("reconciliation %s phase left %d rows unresolved: %v", e.Phase, len(e.RowIDs), e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
