package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edutech-platform/quiz-service/internal/models"
)

// Validator wraps go-playground/validator with the service's custom
// rules registered.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("content_type", func(fl validator.FieldLevel) bool {
		return models.ContentType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("subscription_tier", func(fl validator.FieldLevel) bool {
		return models.SubscriptionTier(fl.Field().String()).IsValid()
	})

	return &Validator{validate: v}
}

// Validate runs struct validation and converts failures into
// ValidationErrors.
func (v *Validator) Validate(s any) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// ToValidationErrors converts a go-playground error into the service's
// ValidationErrors type. Non-validator errors are wrapped as a single
// entry.
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "", Tag: "", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "question_type":
		return fmt.Sprintf("%s is not a supported question type", fe.Field())
	case "content_type":
		return fmt.Sprintf("%s is not a supported content type", fe.Field())
	case "subscription_tier":
		return fmt.Sprintf("%s is not a known subscription tier", fe.Field())
	default:
		return fmt.Sprintf("%s failed validation on %s", fe.Field(), fe.Tag())
	}
}
