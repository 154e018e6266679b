// Package actions implements one function per user-facing operation. Each
// validates its input, attaches the bearer token when the operation needs one,
// performs the backend call and returns a Result instead of an error.
package actions

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/raine/petition-web/internal/api"
	"github.com/rs/zerolog/log"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindNotFound        Kind = "not_found"
	KindRejected        Kind = "rejected"
	KindUnavailable     Kind = "unavailable"
)

var defaultMessages = map[Kind]string{
	KindValidation:      "Please correct the highlighted fields.",
	KindUnauthenticated: "Please sign in to continue.",
	KindNotFound:        "We couldn't find what you were looking for.",
	KindRejected:        "Your request could not be completed.",
	KindUnavailable:     "The service is temporarily unavailable. Please try again in a moment.",
}

// Failure is the unsuccessful branch of a Result. Message is safe to show to
// the user; Err is for logs only.
type Failure struct {
	Kind    Kind
	Message string
	// Fields maps input field names to problems, for KindValidation.
	Fields map[string]string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is either a Value or a Failure.
type Result[T any] struct {
	Value   T
	Failure *Failure
}

func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func Fail[T any](f *Failure) Result[T] {
	return Result[T]{Failure: f}
}

func (r Result[T]) Ok() bool {
	return r.Failure == nil
}

func newFailure(kind Kind, err error) *Failure {
	return &Failure{Kind: kind, Message: defaultMessages[kind], Err: err}
}

// classify maps an error from the api package to a Failure.
func classify(err error) *Failure {
	var verrs validator.ValidationErrors
	var apiErr *api.Error

	switch {
	case errors.As(err, &verrs):
		f := newFailure(KindValidation, err)
		f.Fields = fieldMessages(verrs)
		return f
	case errors.Is(err, api.ErrUnauthorized):
		return newFailure(KindUnauthenticated, err)
	case errors.Is(err, api.ErrNotFound):
		return newFailure(KindNotFound, err)
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		return newFailure(KindRejected, err)
	default:
		return newFailure(KindUnavailable, err)
	}
}

// failed classifies err and logs it at a level matching its kind.
func failed[T any](op string, err error) Result[T] {
	f := classify(err)
	if f.Kind == KindUnavailable {
		log.Warn().Err(err).Str("op", op).Msg("Action failed")
	} else {
		log.Debug().Err(err).Str("op", op).Str("kind", string(f.Kind)).Msg("Action failed")
	}
	return Fail[T](f)
}

func validateInput(in any) *Failure {
	if err := api.ValidateRequest(in); err != nil {
		return classify(err)
	}
	return nil
}

// Validate checks in with the same rules and messages the actions use. It
// returns nil when in is valid.
func Validate(in any) *Failure {
	return validateInput(in)
}

func fieldMessages(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, ok := fields[fe.Field()]; ok {
			continue
		}
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters.", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	case "oneof":
		return "Choose one of: " + strings.ReplaceAll(fe.Param(), " ", ", ") + "."
	case "alphanum":
		return "Use letters and digits only."
	default:
		return "This value is not valid."
	}
}
