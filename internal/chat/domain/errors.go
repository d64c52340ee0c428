package domain

import (
	"errors"
	"fmt"
)

// ErrorKind chat error taxonomy
type ErrorKind string

const (
	// KindInvalidArgument malformed or missing input, never retried
	KindInvalidArgument ErrorKind = "invalid_argument"
	// KindNotFound referenced user or message absent
	KindNotFound ErrorKind = "not_found"
	// KindForbidden referenced user in a disallowed status
	KindForbidden ErrorKind = "forbidden"
	// KindConflictOrNoop treated as success by callers
	KindConflictOrNoop ErrorKind = "conflict_or_noop"
	// KindInternal storage or transport failure, retry with backoff
	KindInternal ErrorKind = "internal"
)

// ChatError definition error returned by the chat service
type ChatError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *ChatError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ChatError) Unwrap() error { return e.Err }

// NewError create a ChatError
func NewError(kind ErrorKind, op, message string, err error) *ChatError {
	return &ChatError{Kind: kind, Op: op, Message: message, Err: err}
}

// RepoErrorKind repository error taxonomy
type RepoErrorKind string

const (
	// RepoValidation missing sender, recipient or body
	RepoValidation RepoErrorKind = "validation"
	// RepoConstraint a referenced user does not exist
	RepoConstraint RepoErrorKind = "constraint"
	// RepoNotFound row not found
	RepoNotFound RepoErrorKind = "not_found"
	// RepoInternal driver failure
	RepoInternal RepoErrorKind = "internal"
)

// RepositoryError definition error returned by a MessageRepository
type RepositoryError struct {
	Kind RepoErrorKind
	Op   string
	Err  error
}

func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("repository %s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("repository %s (%s)", e.Op, e.Kind)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// NewRepoError create a RepositoryError
func NewRepoError(kind RepoErrorKind, op string, err error) *RepositoryError {
	return &RepositoryError{Kind: kind, Op: op, Err: err}
}

// ErrUserNotFound returned by a UserDirectory for unknown ids
var ErrUserNotFound = errors.New("user not found")

// KindOf map any error onto the chat taxonomy. nil maps to "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var re *RepositoryError
	if errors.As(err, &re) {
		switch re.Kind {
		case RepoValidation:
			return KindInvalidArgument
		case RepoConstraint, RepoNotFound:
			return KindNotFound
		}
		return KindInternal
	}
	if errors.Is(err, ErrUserNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// IsKind check err kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRepoKind check err is a RepositoryError of kind
func IsRepoKind(err error, kind RepoErrorKind) bool {
	var re *RepositoryError
	return errors.As(err, &re) && re.Kind == kind
}
