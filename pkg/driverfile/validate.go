package driverfile

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/systemsbiology/sbeams-core/pkg/registry"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// V returns the shared validator with the driver table validations registered.
func V() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonName)
		validate.RegisterValidation("inputTypeValidator", inputTypeValidator)
		validate.RegisterValidation("displayModeValidator", displayModeValidator)
	})
	return validate
}

func inputTypeValidator(fl validator.FieldLevel) bool {
	return registry.InputType(fl.Field().String()).Valid()
}

func displayModeValidator(fl validator.FieldLevel) bool {
	return registry.DisplayMode(fl.Field().String()).Valid()
}

// jsonName reports fields by their driver table column name.
func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// validateRow checks a converted descriptor and returns one RowError per
// failed constraint.
func validateRow(v any, base RowError) []RowError {
	err := V().Struct(v)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		base.Kind = InvalidValue
		base.Msg = err.Error()
		return []RowError{base}
	}

	var out []RowError
	for _, e := range ve {
		re := base
		re.Field = e.Field()
		switch e.Tag() {
		case "required":
			re.Kind = MissingField
			re.Msg = "value is required"
		case "inputTypeValidator":
			re.Kind = InvalidValue
			re.Msg = fmt.Sprintf("unknown input type %q", e.Value())
		case "displayModeValidator":
			re.Kind = InvalidValue
			re.Msg = fmt.Sprintf("unknown display mode %q, want Y, N, P or 2", e.Value())
		default:
			re.Kind = InvalidValue
			re.Msg = fmt.Sprintf("failed %s validation", e.Tag())
		}
		out = append(out, re)
	}
	return out
}
