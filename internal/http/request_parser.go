package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"bilancio/internal/core"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// requestError is a malformed request rejected before reaching a service.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

var (
	validate   = newValidator()
	nonBlankRe = regexp.MustCompile(`\S`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return nonBlankRe.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type (
	createMonthRequest struct {
		UserID string `json:"userId" validate:"required,notblank"`
		Year   *int   `json:"year" validate:"required,min=1900,max=9999"`
		Month  *int   `json:"month" validate:"required,min=0,max=11"`
	}

	addEntryRequest struct {
		MonthID  string      `json:"monthId" validate:"required,notblank"`
		Category string      `json:"category" validate:"required,notblank,max=100"`
		Amount   *core.Money `json:"amount" validate:"required"`
		Note     string      `json:"note" validate:"max=500"`
		Tag      string      `json:"tag" validate:"omitempty,oneof=need want neutral"`
	}

	updateEntryRequest struct {
		MonthID string      `json:"monthId" validate:"required,notblank"`
		Amount  *core.Money `json:"amount" validate:"required"`
		Note    string      `json:"note" validate:"max=500"`
		Tag     string      `json:"tag" validate:"omitempty,oneof=need want neutral"`
	}

	monthRefRequest struct {
		MonthID string `json:"monthId" validate:"required,notblank"`
	}

	createTemplateRequest struct {
		UserID   string      `json:"userId" validate:"required,notblank"`
		Category string      `json:"category" validate:"required,notblank,max=100"`
		Amount   *core.Money `json:"amount" validate:"required"`
		Note     string      `json:"note" validate:"max=500"`
		Tag      string      `json:"tag" validate:"omitempty,oneof=need want neutral"`
	}

	updateTemplateRequest struct {
		UserID   string      `json:"userId" validate:"required,notblank"`
		Category *string     `json:"category" validate:"omitempty,notblank,max=100"`
		Amount   *core.Money `json:"amount"`
		Note     *string     `json:"note" validate:"omitempty,max=500"`
		Tag      *string     `json:"tag" validate:"omitempty,oneof=need want neutral"`
	}

	createUserRequest struct {
		Username string `json:"username" validate:"required,notblank,min=3,max=64"`
		Name     string `json:"name" validate:"max=100"`
		Currency string `json:"currency" validate:"omitempty,oneof=INR USD"`
	}
)

// decodeJSON reads a size-capped JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{status: http.StatusRequestEntityTooLarge, message: "request body too large"}
		}
		return badRequest("could not read request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return badRequest("request body is empty")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return badRequest("malformed JSON body")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest("invalid input")
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldErrorToString(e))
	}
	return badRequest("invalid input: %s", strings.Join(msgs, "; "))
}

func fieldErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	case "min", "max":
		return fmt.Sprintf("%s is out of range (%s %s)", e.Field(), e.Tag(), e.Param())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}

// nonNegative rejects a negative amount.
func nonNegative(m *core.Money) error {
	if m != nil && m.IsNegative() {
		return badRequest("amount must not be negative")
	}
	return nil
}

// pathSide parses the {side} wildcard.
func pathSide(r *http.Request) (core.Side, error) {
	side, err := core.ParseSide(r.PathValue("side"))
	if err != nil {
		return "", badRequest("side must be income or expense")
	}
	return side, nil
}

// requiredQuery returns a non-blank query parameter.
func requiredQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", badRequest("%s query parameter is required", name)
	}
	return v, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
