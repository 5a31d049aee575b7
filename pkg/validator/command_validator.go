package validator

import (
	"bank_ledger/internal/domain"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const TagPositiveDecimal = "positive_decimal"

// CommandValidator checks ledger commands against their `validate` tags and
// turns the first failure into a domain validation error.
type CommandValidator struct {
	validate *validator.Validate
}

func NewCommandValidator() *CommandValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(JSONFieldName)
	if err := RegisterDecimal(v); err != nil {
		panic(err)
	}
	return &CommandValidator{validate: v}
}

// RegisterDecimal teaches v to see decimal.Decimal as its string form and adds
// the positive_decimal tag. It is also applied to gin's binding engine.
func RegisterDecimal(v *validator.Validate) error {
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	return v.RegisterValidation(TagPositiveDecimal, positiveDecimal)
}

func positiveDecimal(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() == reflect.String {
		d, err := decimal.NewFromString(field.String())
		return err == nil && d.IsPositive()
	}
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.IsPositive()
	}
	return false
}

// JSONFieldName reports fields by their json name in validation messages.
func JSONFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func (v *CommandValidator) Struct(cmd any) error {
	return Translate(v.validate.Struct(cmd))
}

// Translate converts a go-playground validation failure into a domain
// validation error. Any other error is wrapped as a validation error as is.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return domain.NewValidationError("%s", describe(fieldErrs[0]))
	}
	return domain.NewValidationError("%s", err.Error())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case TagPositiveDecimal:
		return fmt.Sprintf("%s must be greater than zero", fe.Field())
	case "nefield":
		return "cannot transfer to the same account"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
