// Package validation checks request payloads with validator/v10 and reports
// failures as field-keyed message lists.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Clark-Hu/bookshelf/internal/domain"
)

// Messages shared with the request decoders.
const (
	MsgRequired       = "This field is required."
	MsgBlank          = "This field may not be blank."
	MsgNull           = "This field may not be null."
	MsgInvalidNumber  = "A valid number is required."
	MsgInvalidInteger = "A valid integer is required."
	MsgInvalidBoolean = "Must be a valid boolean."
	MsgInvalidString  = "Not a valid string."
)

// FieldErrors maps a field name to its messages.
type FieldErrors map[string][]string

// Add appends msg to field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Merge appends every message of other.
func (fe FieldErrors) Merge(other FieldErrors) {
	for field, msgs := range other {
		fe[field] = append(fe[field], msgs...)
	}
}

// Err returns fe as an error, or nil when empty.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(fe[field], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator wraps go-playground/validator with the catalog's custom tags.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports JSON field names.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "nonblank", nonBlank)
	mustRegister(v, "decimal", isDecimal)
	mustRegister(v, "max_digits", maxDigits)
	mustRegister(v, "decimal_places", maxDecimalPlaces)
	mustRegister(v, "max_whole_digits", maxWholeDigits)
	mustRegister(v, "rate", isRate)

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// Struct validates s and returns FieldErrors on failure.
func (v *Validator) Struct(s any) error {
	if err := v.v.Struct(s); err != nil {
		return formatError(err)
	}
	return nil
}

func formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	fe := make(FieldErrors)
	for _, e := range validationErrs {
		fe.Add(e.Field(), message(e))
	}
	return fe
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return MsgRequired
	case "nonblank":
		return MsgBlank
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", e.Param())
	case "decimal":
		return MsgInvalidNumber
	case "max_digits":
		return fmt.Sprintf("Ensure that there are no more than %s digits in total.", e.Param())
	case "decimal_places":
		return fmt.Sprintf("Ensure that there are no more than %s decimal places.", e.Param())
	case "max_whole_digits":
		return fmt.Sprintf("Ensure that there are no more than %s digits before the decimal point.", e.Param())
	case "rate":
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(e.Value()))
	default:
		return "Invalid value."
	}
}

func nonBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func isDecimal(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

func isRate(fl validator.FieldLevel) bool {
	value, err := strconv.Atoi(fl.Field().String())
	return err == nil && domain.ValidRate(value)
}

func maxDigits(fl validator.FieldLevel) bool {
	return checkPrecision(fl, func(p Precision) int { return p.Digits })
}

func maxDecimalPlaces(fl validator.FieldLevel) bool {
	return checkPrecision(fl, func(p Precision) int { return p.DecimalPlaces })
}

func maxWholeDigits(fl validator.FieldLevel) bool {
	return checkPrecision(fl, func(p Precision) int { return p.WholeDigits })
}

// checkPrecision passes unparsable input through; the decimal tag reports it.
func checkPrecision(fl validator.FieldLevel, pick func(Precision) int) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return true
	}
	return pick(PrecisionOf(d)) <= limit
}

// Precision describes the digits of a decimal as written.
type Precision struct {
	Digits        int
	DecimalPlaces int
	WholeDigits   int
}

// PrecisionOf counts digits without normalising, so "25.50" has 4 digits
// and 2 decimal places.
func PrecisionOf(d decimal.Decimal) Precision {
	coefficient := d.Coefficient()
	digits := len(coefficient.Abs(coefficient).String())
	exp := int(d.Exponent())

	switch {
	case exp >= 0:
		return Precision{Digits: digits + exp, WholeDigits: digits + exp}
	case digits > -exp:
		return Precision{Digits: digits, DecimalPlaces: -exp, WholeDigits: digits + exp}
	default:
		return Precision{Digits: -exp, DecimalPlaces: -exp}
	}
}
