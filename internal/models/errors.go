package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	KindMissingParameter    ErrorKind = "missing_parameter"
	KindSourceUnavailable   ErrorKind = "source_unavailable"
	KindInvalidEntity       ErrorKind = "invalid_entity"
	KindUnresolvedReference ErrorKind = "unresolved_reference"
)

// Sentinel errors, matched by errors.Is against an *Error of the same kind.
var (
	ErrMissingParameter    = errors.New("missing parameter")
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrInvalidEntity       = errors.New("invalid entity")
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// Error wraps a failure with the stage that hit it and the entity concerned.
type Error struct {
	Op     string // stage: "config", "read", "scope", "build", "crossref", "assemble"
	Kind   ErrorKind
	Entity string // "<kind>/<id>", or just the kind
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Entity != "" {
		msg += ": " + e.Entity
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidEntity) and friends match on kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrMissingParameter:
		return e.Kind == KindMissingParameter
	case ErrSourceUnavailable:
		return e.Kind == KindSourceUnavailable
	case ErrInvalidEntity:
		return e.Kind == KindInvalidEntity
	case ErrUnresolvedReference:
		return e.Kind == KindUnresolvedReference
	}
	return false
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// MissingParameter reports a required input that was not supplied.
func MissingParameter(name string) error {
	return &Error{Op: "config", Kind: KindMissingParameter, Err: fmt.Errorf("missing parameter <%s>", name)}
}

// SourceUnavailable reports a failed read of one kind.
func SourceUnavailable(kind Kind, err error) error {
	return &Error{Op: "read", Kind: KindSourceUnavailable, Entity: string(kind), Err: err}
}

// InvalidEntity reports a record missing a mandatory field.
func InvalidEntity(kind Kind, id, field string) error {
	return &Error{
		Op:     "build",
		Kind:   KindInvalidEntity,
		Entity: EntityRef(kind, id),
		Err:    fmt.Errorf("missing required field %q", field),
	}
}

// UnresolvedReference reports a reference that matches no generated resource.
func UnresolvedReference(op string, kind Kind, id string, err error) error {
	return &Error{Op: op, Kind: KindUnresolvedReference, Entity: EntityRef(kind, id), Err: err}
}

// EntityRef formats "<kind>/<id>" for messages.
func EntityRef(kind Kind, id string) string {
	if id == "" {
		return string(kind)
	}
	return string(kind) + "/" + id
}
