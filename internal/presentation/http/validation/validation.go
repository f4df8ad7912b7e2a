package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"goal-tracker/internal/action"
)

// Pagination holds parsed pagination params.
type Pagination struct {
	Page  int
	Limit int
}

// Offset is the number of rows to skip for the current page.
func (p Pagination) Offset() int { return (p.Page - 1) * p.Limit }

// ParsePagination parses page/limit from query with sensible defaults and bounds.
// maxLimit applies an upper bound if >0. Invalid values fall back to defaults
// and are reported as field errors.
func ParsePagination(q url.Values, defaultLimit, maxLimit int) (Pagination, []action.FieldError) {
	page := 1
	limit := defaultLimit
	var fields []action.FieldError

	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		} else {
			fields = append(fields, action.FieldError{Field: "page", Message: "Page must be a positive integer"})
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		} else {
			fields = append(fields, action.FieldError{Field: "limit", Message: "Limit must be a positive integer"})
		}
	}
	if maxLimit > 0 && limit > maxLimit {
		fields = append(fields, action.FieldError{Field: "limit", Message: fmt.Sprintf("Limit must be at most %d", maxLimit)})
		limit = maxLimit
	}
	return Pagination{Page: page, Limit: limit}, fields
}

// Validator checks struct shape via `validate` tags and reports failures as
// field errors named after the struct's json tags.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
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
	return &Validator{v: v}
}

// Struct validates s and returns field errors in declaration order.
func (val *Validator) Struct(s any) []action.FieldError {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []action.FieldError{{Field: "input", Message: "Input is invalid"}}
	}
	out := make([]action.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, action.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		if !isText(fe) {
			return fmt.Sprintf("%s must be at least %s", label, fe.Param())
		}
		if fe.Param() == "1" {
			return label + " cannot be empty"
		}
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		if !isText(fe) {
			return fmt.Sprintf("%s must be at most %s", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.Join(strings.Fields(fe.Param()), ", "))
	case "datetime":
		return label + " must be a date in YYYY-MM-DD format"
	case "email":
		return label + " must be a valid email address"
	case "numeric":
		return label + " must contain only digits"
	case "uuid", "uuid4":
		return label + " must be a valid identifier"
	default:
		return label + " is invalid"
	}
}

func isText(fe validator.FieldError) bool {
	return fe.Kind() == reflect.String
}

// humanize turns a json field name like "targetDate" into "Target date".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
