package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"travel-booking/internal/status"
	"travel-booking/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// phonePattern accepts digits and dashes, 6 to 20 characters,
// starting and ending on a digit.
var phonePattern = regexp.MustCompile(`^[0-9][0-9-]{4,18}[0-9]$`)

const birthDateLayout = "2006-01-02"

// ValidateTravelers checks every record independently and returns the
// full list of violations, one entry per failed field. It never
// short-circuits and has no side effects.
func ValidateTravelers(details []models.TravelerDetail) []status.Violation {
	today := time.Now()

	var violations []status.Violation
	for i, d := range details {
		errs := validateTraveler(d, today)

		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			violations = append(violations, status.Violation{
				TravelerIndex: i,
				Field:         field,
				Reason:        errs[field].Error(),
			})
		}
	}
	return violations
}

func validateTraveler(d models.TravelerDetail, today time.Time) validation.Errors {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.By(nonBlank)),
		validation.Field(&d.Email,
			validation.Required.Error("required"),
			is.Email.Error("format"),
		),
		validation.Field(&d.Phone,
			validation.Required.Error("required"),
			validation.Match(phonePattern).Error("format"),
		),
		validation.Field(&d.PassportNumber, validation.By(nonBlank)),
		validation.Field(&d.BirthDate, validation.By(birthDateBefore(today))),
		validation.Field(&d.Gender,
			validation.Required.Error("required"),
			validation.In(models.GenderMale, models.GenderFemale).Error("invalid_value"),
		),
	)

	if err == nil {
		return nil
	}
	if errs, ok := err.(validation.Errors); ok {
		return errs
	}
	// ValidateStruct only fails this way on a programming error
	return validation.Errors{"_": err}
}

func nonBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func birthDateBefore(today time.Time) validation.RuleFunc {
	return func(value any) error {
		raw, _ := value.(string)
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("required")
		}
		born, err := time.Parse(birthDateLayout, raw)
		if err != nil {
			return fmt.Errorf("format")
		}
		y, m, d := today.Date()
		if !born.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
			return fmt.Errorf("not_in_past")
		}
		return nil
	}
}
