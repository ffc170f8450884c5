// Package businessflow contains the lead attribution, counter maintenance and statistics use cases
package businessflow

import (
	"errors"
	"fmt"
	"strings"
)

// Business flow error constants
var (
	ErrNotFound = errors.New("not found")

	// Entity lookups; each wraps ErrNotFound
	ErrFormNotFound       = fmt.Errorf("form %w", ErrNotFound)
	ErrLeadNotFound       = fmt.Errorf("lead %w", ErrNotFound)
	ErrAffiliateNotFound  = fmt.Errorf("affiliate %w", ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("assignment %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)

	ErrFormInactive       = errors.New("form is inactive")
	ErrValidation         = errors.New("validation error")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrConsistencyWarning = errors.New("counter consistency warning")
	ErrLeadStatusConflict = errors.New("lead status was changed by another request")

	// Auth errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountInactive    = errors.New("account is inactive")

	// Affiliate errors
	ErrAffiliateCodeTaken = errors.New("affiliate code already in use")
	ErrUsernameTaken      = errors.New("username or email already in use")
	ErrAffiliateInactive  = errors.New("affiliate is inactive")
	ErrUserNotAffiliate   = errors.New("user does not have the affiliate role")

	// Recompute errors
	ErrRecomputeInProgress = errors.New("counter recompute already in progress")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// NewValidationError reports bad input; the message is safe to show to the submitter
func NewValidationError(message string) *BusinessError {
	return NewBusinessError("VALIDATION_ERROR", message, ErrValidation)
}

// ConsistencyWarning reports counter updates that failed after the lead itself was stored.
// The lead write stands; RecomputeAffiliate repairs the counters.
type ConsistencyWarning struct {
	Operation   string
	LeadID      uint
	AffiliateID uint
	Failures    []error
}

func (w *ConsistencyWarning) Error() string {
	msgs := make([]string, 0, len(w.Failures))
	for _, f := range w.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%s: %s for lead %d (affiliate %d): %s",
		ErrConsistencyWarning, w.Operation, w.LeadID, w.AffiliateID, strings.Join(msgs, "; "))
}

func (w *ConsistencyWarning) Unwrap() []error {
	return append([]error{ErrConsistencyWarning}, w.Failures...)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsFormNotFound(err error) bool {
	return errors.Is(err, ErrFormNotFound)
}

func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

func IsAffiliateNotFound(err error) bool {
	return errors.Is(err, ErrAffiliateNotFound)
}

func IsFormInactive(err error) bool {
	return errors.Is(err, ErrFormInactive)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsConsistencyWarning(err error) bool {
	return errors.Is(err, ErrConsistencyWarning)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsAffiliateCodeTaken(err error) bool {
	return errors.Is(err, ErrAffiliateCodeTaken)
}

func IsUsernameTaken(err error) bool {
	return errors.Is(err, ErrUsernameTaken)
}

func IsLeadStatusConflict(err error) bool {
	return errors.Is(err, ErrLeadStatusConflict)
}

func IsRecomputeInProgress(err error) bool {
	return errors.Is(err, ErrRecomputeInProgress)
}
