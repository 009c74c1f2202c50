package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"wallet-service/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	// Decimals outside these bounds are rejected before they are ever
	// rendered or rescaled: 1e2000000 parses in a few bytes but expands to
	// two million digits.
	maxExponent        = 12
	minExponent        = -(domain.BalanceScale + 40)
	maxCoefficientBits = 128
	outOfRangeSentinel = "out-of-range"
)

func init() {
	// Request bodies must not carry fields the API does not define.
	binding.EnableDecoderDisallowUnknownFields = true

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidators(v)
	}
}

// RegisterValidators installs the custom tags used by the request DTOs and
// reports fields by their JSON names.
func RegisterValidators(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// Decimals are validated through their canonical string form.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		if !withinBounds(d) {
			return outOfRangeSentinel
		}
		return d.String()
	}, decimal.Decimal{})
	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("decimal_gte0", validateDecimalNonNegative)
}

// validateMoney accepts decimals that fit the balance column: at most
// domain.BalanceScale fractional digits and magnitude below 10^12.
func validateMoney(fl validator.FieldLevel) bool {
	d, ok := fieldDecimal(fl)
	if !ok {
		return false
	}
	if d.Exponent() < -domain.BalanceScale && !d.Equal(d.Round(domain.BalanceScale)) {
		return false
	}
	return d.Abs().LessThan(domain.MaxBalance)
}

// withinBounds reports whether d is small enough to format and compare
// cheaply. It only inspects the exponent and the coefficient size.
func withinBounds(d decimal.Decimal) bool {
	if d.Exponent() > maxExponent || d.Exponent() < minExponent {
		return false
	}
	return d.Coefficient().BitLen() <= maxCoefficientBits
}

func validateDecimalNonNegative(fl validator.FieldLevel) bool {
	d, ok := fieldDecimal(fl)
	return ok && !d.IsNegative()
}

func fieldDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	if fl.Field().Kind() != reflect.String {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// IsEmptyBody reports whether a bind error means the request had no body.
func IsEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}

// ValidationMessage turns a binding error into a client-facing message.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return strings.Join(msgs, "; ")
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field '%s' has an invalid type", typeErr.Field)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "Malformed JSON body"
	}

	msg := err.Error()
	if strings.HasPrefix(msg, "json: unknown field ") {
		return "Unknown field " + strings.TrimPrefix(msg, "json: unknown field ")
	}
	// decimal.Decimal reports unparsable numbers with its own error type.
	if strings.Contains(msg, "decimal") || strings.Contains(msg, "can't convert") {
		return "Numeric field has an invalid value"
	}
	return "Invalid request body"
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", fe.Field(), fe.Param())
	case "money":
		return fmt.Sprintf("field '%s' must be below 10^12 with at most %d decimal places", fe.Field(), domain.BalanceScale)
	case "decimal_gte0":
		return fmt.Sprintf("field '%s' must be a non-negative number", fe.Field())
	default:
		return fmt.Sprintf("field '%s' failed '%s' validation", fe.Field(), fe.Tag())
	}
}
