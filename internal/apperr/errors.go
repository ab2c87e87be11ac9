// Package apperr classifies failures of a drop run so the orchestrator and
// CLI can decide between aborting, reporting and exiting.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindPersistence    Kind = "persistence"
	KindCorruptState   Kind = "corrupt_state"
	KindProvisioning   Kind = "provisioning"
	KindPublish        Kind = "publish"
	KindSubmission     Kind = "submission"
	KindInvalidRequest Kind = "invalid_request"
)

var (
	ErrPersistence    = errors.New("local state could not be read or written")
	ErrCorruptState   = errors.New("local state is corrupt")
	ErrProvisioning   = errors.New("merkle tree provisioning failed")
	ErrPublish        = errors.New("metadata publish failed")
	ErrSubmission     = errors.New("mint submission failed")
	ErrInvalidRequest = errors.New("invalid request")
)

var sentinels = map[Kind]error{
	KindPersistence:    ErrPersistence,
	KindCorruptState:   ErrCorruptState,
	KindProvisioning:   ErrProvisioning,
	KindPublish:        ErrPublish,
	KindSubmission:     ErrSubmission,
	KindInvalidRequest: ErrInvalidRequest,
}

// Error is a classified failure. errors.Is matches both the kind sentinel
// and the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func New(kind Kind, op string, err error) error {
	if err == nil {
		err = sentinels[kind]
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Persistence(op string, err error) error  { return New(KindPersistence, op, err) }
func CorruptState(op string, err error) error { return New(KindCorruptState, op, err) }
func Provisioning(op string, err error) error { return New(KindProvisioning, op, err) }
func Publish(op string, err error) error      { return New(KindPublish, op, err) }
func InvalidRequest(op string, err error) error {
	return New(KindInvalidRequest, op, err)
}

// KindOf returns the kind of the outermost classified error, or "".
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	var sub *SubmissionError
	if errors.As(err, &sub) {
		return KindSubmission
	}
	return ""
}

// SubmissionError names the recipient whose mint failed.
type SubmissionError struct {
	Index     int
	Recipient string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission for recipient #%d (%s) failed: %v", e.Index, e.Recipient, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmission
}
