package action

import (
	"context"
	"errors"
)

const (
	defaultInvalidMessage  = "Invalid input"
	defaultDatabaseMessage = "Failed to save changes"
	defaultUnknownMessage  = "An unexpected error occurred"
)

// Observer is told the outcome of every action run. code is "" on success.
type Observer interface {
	ObserveAction(ctx context.Context, name string, code ErrorCode)
}

// Stages describes one action as the ordered pipeline
// Sanitize → Validate → Authorize → Execute. Nil stages are skipped, except
// Execute which is required.
type Stages[In, Out any] struct {
	Name string

	Sanitize  func(in In) In
	Validate  func(in In) []FieldError
	Authorize func(ctx context.Context, in In) *Error
	Execute   func(ctx context.Context, in In) (Out, error)

	// InvalidMessage and DatabaseMessage override the envelope messages for
	// validation and persistence failures.
	InvalidMessage  string
	DatabaseMessage string
}

// Run drives in through the stages. Any stage may short-circuit to an error
// envelope; nothing escapes as a panic or a bare error. Execute errors become
// DATABASE_ERROR unless they wrap an *Error, which is returned as is.
func Run[In, Out any](ctx context.Context, obs Observer, s Stages[In, Out], in In) (res Result[Out]) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Failure[Out](Unknown(defaultUnknownMessage))
		}
		if obs != nil {
			obs.ObserveAction(ctx, s.Name, res.Code())
		}
	}()

	if s.Sanitize != nil {
		in = s.Sanitize(in)
	}

	if s.Validate != nil {
		if fields := s.Validate(in); len(fields) > 0 {
			msg := s.InvalidMessage
			if msg == "" {
				msg = defaultInvalidMessage
			}
			return Failure[Out](Invalid(msg, fields...))
		}
	}

	if s.Authorize != nil {
		if e := s.Authorize(ctx, in); e != nil {
			return Failure[Out](e)
		}
	}

	if s.Execute == nil {
		return Failure[Out](Unknown(defaultUnknownMessage))
	}
	out, err := s.Execute(ctx, in)
	if err != nil {
		return Failure[Out](classify(err, s.DatabaseMessage))
	}
	return Success(out)
}

func classify(err error, databaseMessage string) *Error {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e
	}
	if databaseMessage == "" {
		databaseMessage = defaultDatabaseMessage
	}
	return DatabaseFailure(databaseMessage)
}
