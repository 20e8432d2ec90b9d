package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"protectbox/internal/mission"
	"protectbox/internal/store"

	"github.com/go-playground/validator/v10"
)

// RejectedError reports a lifecycle guard that refused an operation
type RejectedError struct {
	Op     string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return mission.ErrGuard
}

func rejected(op, format string, args ...interface{}) error {
	return &RejectedError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError carries per-field messages keyed by JSON field path
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Error codes shared by the HTTP and WebSocket surfaces
const (
	CodeNotFound         = "not_found"
	CodeVersionConflict  = "version_conflict"
	CodeGuardRejected    = "guard_rejected"
	CodeValidationFailed = "validation_failed"
	CodeInternal         = "internal_error"
)

// Code classifies a service error
func Code(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return CodeValidationFailed
	case errors.Is(err, mission.ErrGuard):
		return CodeGuardRejected
	case errors.Is(err, store.ErrVersionConflict):
		return CodeVersionConflict
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	}
	return CodeInternal
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and converts failures into a ValidationError
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe.Namespace())] = message(fe)
	}
	return out
}

// fieldPath drops the root struct name and embedded struct names from a namespace
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	kept := parts[:0]
	for _, p := range parts {
		if p == "PersonName" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ".")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
