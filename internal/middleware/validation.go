package middleware

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "macrostress/internal/errors"
	"macrostress/internal/infrastructure"
)

// DefaultMaxBodySize caps JSON request bodies.
const DefaultMaxBodySize = 1 << 20

// Validator decodes JSON bodies and query parameters and validates them with
// struct tags. Field names in messages use the json tag.
type Validator struct {
	validate    *validator.Validate
	logger      *slog.Logger
	maxBodySize int64
}

// NewValidator creates a Validator.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		validate:    v,
		logger:      infrastructure.WithComponent(logger, "validator"),
		maxBodySize: DefaultMaxBodySize,
	}
}

// DecodeJSON reads r's body into dst, applies `default` tags, then validates.
// An empty body is treated as an empty object.
func (v *Validator) DecodeJSON(r *http.Request, dst interface{}) error {
	if r.ContentLength > v.maxBodySize {
		return apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"Request body exceeds maximum allowed size",
			map[string]interface{}{"max_size": v.maxBodySize})
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, v.maxBodySize)
		if err := render.DecodeJSON(r.Body, dst); err != nil && !errors.Is(err, io.EOF) {
			v.logger.DebugContext(r.Context(), "request_decode_failed", slog.String("error", err.Error()))
			return apierrors.InvalidRequestWithError(err)
		}
	}
	if err := defaults.Set(dst); err != nil {
		return apierrors.InvalidRequestWithError(err)
	}
	return v.Struct(dst)
}

// Struct validates s and converts failures to a VALIDATION_FAILED APIError.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}
	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

func formatValidationError(err validator.FieldError) string {
	field, param := err.Field(), err.Param()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// QueryInt parses an optional integer query parameter. It returns nil when the
// parameter is absent.
func QueryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apierrors.ErrValidation(name, fmt.Sprintf("%s must be a valid integer", name))
	}
	return &n, nil
}

// QueryFloat parses an optional float query parameter.
func QueryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apierrors.ErrValidation(name, fmt.Sprintf("%s must be a number", name))
	}
	return &f, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apierrors.ErrValidation(name, fmt.Sprintf("%s must be true or false", name))
	}
	return &b, nil
}
