package action

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allCodes = []ErrorCode{CodeUnauthorized, CodeValidationError, CodeNotFound, CodeDatabaseError, CodeUnknownError}

func TestPredicates_ErrorEnvelope(t *testing.T) {
	for _, code := range allCodes {
		for _, msg := range []string{"", "boom", "Goal not found"} {
			e := NewError(msg, code)
			assert.True(t, IsError(e), "code %s", code)
			assert.False(t, IsSuccess(e), "code %s", code)

			r := Failure[int](e)
			assert.True(t, IsError(r))
			assert.False(t, IsSuccess(r))

			b, err := json.Marshal(r)
			require.NoError(t, err)
			assert.True(t, IsError(b), string(b))
			assert.False(t, IsSuccess(b), string(b))
		}
	}
}

func TestPredicates_SuccessEnvelope(t *testing.T) {
	values := []any{nil, 0, "", "x", []string{}, map[string]any{"error": "looks like one", "code": "NOT_FOUND"}}
	for _, v := range values {
		r := Success(v)
		assert.True(t, IsSuccess(r), "%#v", v)
		assert.False(t, IsError(r), "%#v", v)

		b, err := json.Marshal(r)
		require.NoError(t, err)
		assert.True(t, IsSuccess(b), string(b))
		assert.False(t, IsError(b), string(b))
	}
}

func TestPredicates_RejectForeignValues(t *testing.T) {
	var nilErr *Error
	var nilResult *Result[int]
	var nilGoals *Result[[]string]
	cases := []any{
		nil,
		nilErr,
		nilResult,
		nilGoals,
		42,
		"error",
		map[string]any{"success": "true"},
		map[string]any{"success": 1},
		map[string]any{"error": 5, "code": "NOT_FOUND"},
		map[string]any{"error": "missing code"},
		[]byte("not json"),
	}
	for _, c := range cases {
		assert.False(t, IsError(c), "%#v", c)
		assert.False(t, IsSuccess(c), "%#v", c)
	}
}

func TestPredicates_ResultPointers(t *testing.T) {
	ok := Success(7)
	failed := Failure[int](NotFound("Goal not found"))

	assert.True(t, IsSuccess(&ok))
	assert.False(t, IsError(&ok))
	assert.True(t, IsError(&failed))
	assert.False(t, IsSuccess(&failed))
}

func TestNewError_ValidationErrorsKeyPresence(t *testing.T) {
	var omitted map[string]any
	b, err := json.Marshal(NewError("Invalid goal", CodeValidationError))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &omitted))
	_, present := omitted["validationErrors"]
	assert.False(t, present, "no field errors supplied must omit the key")

	var empty map[string]any
	b, err = json.Marshal(NewError("Invalid goal", CodeValidationError, []FieldError{}...))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &empty))
	v, present := empty["validationErrors"]
	assert.True(t, present, "explicit empty slice keeps the key")
	assert.Equal(t, []any{}, v)

	var full map[string]any
	b, err = json.Marshal(Invalid("Invalid goal", FieldError{Field: "title", Message: "Title is required"}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &full))
	assert.Equal(t, "Invalid goal", full["error"])
	assert.Equal(t, "VALIDATION_ERROR", full["code"])
	assert.Equal(t, []any{map[string]any{"field": "title", "message": "Title is required"}}, full["validationErrors"])
}

func TestNewError_DropsFieldErrorsForOtherCodes(t *testing.T) {
	e := NewError("nope", CodeNotFound, FieldError{Field: "title", Message: "x"})
	assert.Nil(t, e.ValidationErrors)

	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"nope","code":"NOT_FOUND"}`, string(b))
}

func TestResult_JSONShape(t *testing.T) {
	b, err := json.Marshal(Success(map[string]int{"n": 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"n":1}}`, string(b))

	b, err = json.Marshal(Failure[string](Unauthorized("You must be signed in")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"You must be signed in","code":"UNAUTHORIZED"}`, string(b))
}

func TestDecode(t *testing.T) {
	type goal struct {
		Title string `json:"title"`
	}

	r, err := Decode[goal]([]byte(`{"success":true,"data":{"title":"Run"}}`))
	require.NoError(t, err)
	require.True(t, r.Ok())
	assert.Equal(t, "Run", r.Data().Title)

	r, err = Decode[goal]([]byte(`{"error":"Invalid goal","code":"VALIDATION_ERROR","validationErrors":[{"field":"title","message":"Title is required"}]}`))
	require.NoError(t, err)
	require.False(t, r.Ok())
	assert.Equal(t, CodeValidationError, r.Code())
	assert.Equal(t, []FieldError{{Field: "title", Message: "Title is required"}}, r.Err().ValidationErrors)

	_, err = Decode[goal]([]byte(`{"data":{}}`))
	assert.Error(t, err)
}

func TestMatch_IsExhaustive(t *testing.T) {
	label := func(r Result[int]) string {
		return Match(r,
			func(n int) string { return "ok" },
			func(e *Error) string { return string(e.Code) },
		)
	}
	assert.Equal(t, "ok", label(Success(3)))
	assert.Equal(t, "NOT_FOUND", label(Failure[int](NotFound("Task not found"))))
	assert.Equal(t, "UNKNOWN_ERROR", label(Failure[int](nil)))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeValidationError))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeDatabaseError))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeUnknownError))
	for _, c := range allCodes {
		assert.True(t, c.Valid())
	}
	assert.False(t, ErrorCode("FORBIDDEN").Valid())
}
