package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/services"
)

// Validator wraps go-playground struct validation and translates failures
// into the service layer's field error type.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerRules()

	return v
}

// Validate checks struct tags and returns services.ValidationErrors on
// failure so handlers can map it to a 400 with field details.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validation error: %w", err)
	}

	var out services.ValidationErrors
	for _, fe := range fieldErrors {
		out = append(out, services.ValidationError{
			Field:   fieldName(fe),
			Message: messageFor(fe),
			Value:   fe.Value(),
		})
	}
	return out
}

func (v *Validator) registerRules() {
	// Question type must be one of the supported kinds
	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})

	// Passing score validation (0-100)
	v.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Int()
		return score >= 0 && score <= 100
	})

	// Time limit validation (1-600 minutes)
	v.validate.RegisterValidation("time_limit", func(fl validator.FieldLevel) bool {
		limit := fl.Field().Int()
		return limit >= 1 && limit <= 600
	})

	// Max attempts validation (1-10)
	v.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= 1 && attempts <= 10
	})
}

func fieldName(fe validator.FieldError) string {
	// Strip the struct name prefix, keep nested path
	parts := strings.SplitN(fe.Namespace(), ".", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return fe.Field()
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "question_type":
		return "is not a supported question type"
	case "passing_score":
		return "must be between 0 and 100"
	case "time_limit":
		return "must be between 1 and 600 minutes"
	case "max_attempts":
		return "must be between 1 and 10"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
