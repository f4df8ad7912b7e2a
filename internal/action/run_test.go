package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	names []string
	codes []ErrorCode
}

func (r *recorder) ObserveAction(_ context.Context, name string, code ErrorCode) {
	r.names = append(r.names, name)
	r.codes = append(r.codes, code)
}

func trimStage(in string) string { return strings.TrimSpace(in) }

func TestRun_StageOrder(t *testing.T) {
	var trail []string
	s := Stages[string, string]{
		Name: "echo",
		Sanitize: func(in string) string {
			trail = append(trail, "sanitize")
			return trimStage(in)
		},
		Validate: func(in string) []FieldError {
			trail = append(trail, "validate:"+in)
			return nil
		},
		Authorize: func(context.Context, string) *Error {
			trail = append(trail, "authorize")
			return nil
		},
		Execute: func(_ context.Context, in string) (string, error) {
			trail = append(trail, "execute")
			return strings.ToUpper(in), nil
		},
	}

	rec := &recorder{}
	res := Run(context.Background(), rec, s, "  hi  ")
	require.True(t, res.Ok())
	assert.Equal(t, "HI", res.Data())
	assert.Equal(t, []string{"sanitize", "validate:hi", "authorize", "execute"}, trail)
	assert.Equal(t, []string{"echo"}, rec.names)
	assert.Equal(t, []ErrorCode{""}, rec.codes)
}

func TestRun_ValidationShortCircuits(t *testing.T) {
	executed := false
	s := Stages[string, string]{
		Name:           "create",
		InvalidMessage: "Invalid goal",
		Validate: func(in string) []FieldError {
			if in == "" {
				return []FieldError{{Field: "title", Message: "Title is required"}}
			}
			return nil
		},
		Authorize: func(context.Context, string) *Error {
			t.Fatal("authorize must not run after a validation failure")
			return nil
		},
		Execute: func(context.Context, string) (string, error) {
			executed = true
			return "", nil
		},
	}

	res := Run(context.Background(), nil, s, "")
	require.False(t, res.Ok())
	assert.False(t, executed)
	assert.Equal(t, CodeValidationError, res.Code())
	assert.Equal(t, "Invalid goal", res.Err().Message)
	assert.Len(t, res.Err().ValidationErrors, 1)
}

func TestRun_AuthorizeShortCircuits(t *testing.T) {
	executed := false
	s := Stages[int, int]{
		Authorize: func(context.Context, int) *Error { return NotFound("Goal not found") },
		Execute: func(context.Context, int) (int, error) {
			executed = true
			return 0, nil
		},
	}
	res := Run(context.Background(), nil, s, 1)
	assert.False(t, executed)
	assert.Equal(t, CodeNotFound, res.Code())
	assert.Equal(t, "Goal not found", res.Err().Message)
}

func TestRun_ExecuteFailuresMapToDatabaseError(t *testing.T) {
	s := Stages[int, int]{
		DatabaseMessage: "Failed to create goal",
		Execute: func(context.Context, int) (int, error) {
			return 0, fmt.Errorf("inserting goal: %w", errors.New("disk I/O error"))
		},
	}
	res := Run(context.Background(), nil, s, 1)
	assert.Equal(t, CodeDatabaseError, res.Code())
	assert.Equal(t, "Failed to create goal", res.Err().Message)
	assert.NotContains(t, res.Err().Message, "disk")
}

func TestRun_ExecuteMayReturnEnvelope(t *testing.T) {
	s := Stages[int, int]{
		Execute: func(context.Context, int) (int, error) {
			return 0, fmt.Errorf("wrapped: %w", NotFound("Task not found"))
		},
	}
	res := Run(context.Background(), nil, s, 1)
	assert.Equal(t, CodeNotFound, res.Code())
	assert.Equal(t, "Task not found", res.Err().Message)
}

func TestRun_PanicBecomesUnknownError(t *testing.T) {
	rec := &recorder{}
	s := Stages[int, int]{
		Name: "explode",
		Execute: func(context.Context, int) (int, error) {
			panic("boom")
		},
	}
	res := Run(context.Background(), rec, s, 1)
	assert.Equal(t, CodeUnknownError, res.Code())
	assert.Equal(t, []ErrorCode{CodeUnknownError}, rec.codes)
}

func TestRun_MissingExecute(t *testing.T) {
	res := Run(context.Background(), nil, Stages[int, int]{}, 1)
	assert.Equal(t, CodeUnknownError, res.Code())
}
