package domain

import (
	"errors"
	"fmt"
)

// Error kinds reported by the invoice engine. Callers match them with errors.Is.
var (
	ErrInvalidIdentifier   = errors.New("invalid invoice identifier")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrMissingField        = errors.New("missing required field")
	ErrNotFound            = errors.New("invoice not found")
	ErrImmutable           = errors.New("invoice is completed and read-only")
	ErrInconsistentState   = errors.New("derived fields are inconsistent")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrNotWarranted is returned when a reminder is requested for an invoice
	// that does not fall into any escalation tier.
	ErrNotWarranted = errors.New("reminder not warranted")

	// ErrInvalidDocumentKind is returned for a document kind outside the catalog.
	ErrInvalidDocumentKind = errors.New("unknown document kind")

	ErrDuplicate = errors.New("invoice number already exists")

	// ErrBusy means another writer held the invoice for longer than the lock
	// wait. Safe to retry.
	ErrBusy = errors.New("invoice is being modified")
)

// Error carries the failing operation and field next to one of the kinds above.
type Error struct {
	Op      string
	Kind    error
	Field   string
	Details string
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Details != "":
		return fmt.Sprintf("%s: %v: %s: %s", e.Op, e.Kind, e.Field, e.Details)
	case e.Field != "":
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Field)
	case e.Details != "":
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError builds an *Error for kind.
func NewError(op string, kind error, details string) *Error {
	return &Error{Op: op, Kind: kind, Details: details}
}

// FieldError builds an *Error naming the offending field.
func FieldError(op string, kind error, field string) *Error {
	return &Error{Op: op, Kind: kind, Field: field}
}

// Upstream wraps a collaborator failure as ErrUpstreamUnavailable while keeping
// the original cause in the message.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && errors.Is(de.Kind, ErrUpstreamUnavailable) {
		return err
	}
	return &Error{Op: op, Kind: ErrUpstreamUnavailable, Details: err.Error()}
}
