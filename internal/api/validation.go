package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/wellness-reschedule/internal/appointment"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("wire_date", validateWireDate)
	_ = validate.RegisterValidation("wire_time", validateWireTime)
}

func validateWireDate(fl validator.FieldLevel) bool {
	return appointment.ValidateSchedule(fl.Field().String(), "00:00") == nil
}

func validateWireTime(fl validator.FieldLevel) bool {
	return appointment.ValidateSchedule("2000-01-01", fl.Field().String()) == nil
}

// validationMessage turns validator errors into one client-facing sentence
// naming the offending JSON fields.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	var missing, invalid []string
	for _, fe := range verrs {
		name := fe.Field()
		if fe.Tag() == "required" {
			missing = append(missing, name)
		} else {
			invalid = append(invalid, name)
		}
	}

	switch {
	case len(missing) > 0:
		return fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", "))
	default:
		return fmt.Sprintf("Invalid fields: %s", strings.Join(invalid, ", "))
	}
}
