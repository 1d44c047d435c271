package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/production-service/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var (
	skuRegex          = regexp.MustCompile(`^[A-Z]{2}-\d{2}-[A-Z]-\d{2}-[A-Z]{3}$`)
	locationCodeRegex = regexp.MustCompile(`^[A-Z0-9-]+$`)
	lengthRegex       = regexp.MustCompile(`^\d{2}$`)
)

// Validator returns the shared validator with the production tags registered
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		Register(validate)
	})
	return validate
}

// Register adds the custom tags and JSON field naming to v.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("sku", validateSKU)
	_ = v.RegisterValidation("location_code", validateLocationCode)
	_ = v.RegisterValidation("sku_length", validateLength)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

func validateSKU(fl validator.FieldLevel) bool {
	return skuRegex.MatchString(fl.Field().String())
}

func validateLocationCode(fl validator.FieldLevel) bool {
	return locationCodeRegex.MatchString(fl.Field().String())
}

func validateLength(fl validator.FieldLevel) bool {
	return lengthRegex.MatchString(fl.Field().String())
}

// FieldErrors formats validation errors into a field -> message map
func FieldErrors(err error) map[string]string {
	fields := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			fields[e.Field()] = formatFieldError(e)
		}
	}

	return fields
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "sku":
		return "must be a SKU (format: ST-32-R-32-RAW)"
	case "location_code":
		return "must contain only uppercase letters, digits and dashes"
	case "sku_length":
		return "must be two digits"
	default:
		return "is invalid"
	}
}

// Struct validates obj, returning a VALIDATION error with field details.
func Struct(obj any) *errors.AppError {
	if err := Validator().Struct(obj); err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", FieldErrors(err))
		}
		return errors.ErrInvalidRequest(err.Error())
	}
	return nil
}
