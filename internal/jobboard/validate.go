package jobboard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/R3E-Network/jobboard/internal/ledger"
)

// =============================================================================
// Write inputs
// =============================================================================

// Numeric inputs are signed so that negative values reach validation instead
// of wrapping on conversion.

// UserProfileInput is the content of a create or update of a user profile.
type UserProfileInput struct {
	Name            string   `json:"name" validate:"utf8,notblank,max=100"`
	Bio             string   `json:"bio" validate:"utf8,max=1000"`
	AvatarURL       string   `json:"avatarUrl" validate:"omitempty,utf8,url,max=2048"`
	Skills          []string `json:"skills" validate:"max=50,dive,utf8,notblank,max=50"`
	ExperienceYears int64    `json:"experienceYears" validate:"min=0,max=70"`
	PortfolioURL    string   `json:"portfolioUrl" validate:"omitempty,utf8,url,max=2048"`
}

// EmployerProfileInput is the content of a create or update of an employer profile.
type EmployerProfileInput struct {
	CompanyName string `json:"companyName" validate:"utf8,notblank,max=100"`
	Description string `json:"description" validate:"utf8,max=2000"`
	LogoURL     string `json:"logoUrl" validate:"omitempty,utf8,url,max=2048"`
	Website     string `json:"website" validate:"omitempty,utf8,url,max=2048"`
	Industry    string `json:"industry" validate:"utf8,max=100"`
}

// PostJobInput describes a new job. Deadline is in epoch milliseconds and
// must lie in the future.
type PostJobInput struct {
	EmployerProfileID string `json:"employerProfileId" validate:"ledgeraddr"`
	Title             string `json:"title" validate:"utf8,notblank,max=200"`
	Description       string `json:"description" validate:"utf8,notblank,max=5000"`
	Salary            *int64 `json:"salary,omitempty" validate:"omitempty,min=0,max=9007199254740991"`
	Deadline          int64  `json:"deadline" validate:"min=0,max=9007199254740991"`
}

// ApplyInput describes an application to a job.
type ApplyInput struct {
	JobID         string `json:"jobId" validate:"ledgeraddr"`
	UserProfileID string `json:"userProfileId" validate:"ledgeraddr"`
	CoverMessage  string `json:"coverMessage" validate:"utf8,max=5000"`
	CVURL         string `json:"cvUrl" validate:"utf8,max=2048"`
}

// HireInput selects the application to hire by the candidate's per-job index.
type HireInput struct {
	JobID            string `json:"jobId" validate:"ledgeraddr"`
	CapID            string `json:"capId" validate:"ledgeraddr"`
	Candidate        string `json:"candidate" validate:"ledgeraddr"`
	ApplicationIndex int64  `json:"applicationIndex" validate:"min=0"`
}

// CloseJobInput identifies the job to close and its capability.
type CloseJobInput struct {
	JobID string `json:"jobId" validate:"ledgeraddr"`
	CapID string `json:"capId" validate:"ledgeraddr"`
}

// =============================================================================
// Errors
// =============================================================================

// FieldError is one failed check on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failed check of one input. It matches
// ErrInvalidInput with errors.Is.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalidInput) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Has reports whether field failed a check.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// =============================================================================
// Validator
// =============================================================================

// Validator checks write inputs before any call is built. It is pure apart
// from reading the clock for deadline checks.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// NewValidator returns a validator using now for deadline checks; nil means time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// Move strings must be valid UTF-8 or the call aborts on chain.
	_ = v.RegisterValidation("utf8", func(fl validator.FieldLevel) bool {
		return utf8.ValidString(fl.Field().String())
	})
	_ = v.RegisterValidation("ledgeraddr", func(fl validator.FieldLevel) bool {
		return ledger.IsValidAddress(fl.Field().String())
	})

	return &Validator{v: v, now: now}
}

// UserProfile validates a user profile input.
func (v *Validator) UserProfile(in UserProfileInput) error {
	return v.check(in, nil)
}

// EmployerProfile validates an employer profile input.
func (v *Validator) EmployerProfile(in EmployerProfileInput) error {
	return v.check(in, nil)
}

// PostJob validates a job posting, including that the deadline is in the future.
func (v *Validator) PostJob(in PostJobInput) error {
	var extra []FieldError
	if in.Deadline <= v.now().UnixMilli() {
		extra = append(extra, FieldError{Field: "deadline", Message: "must be in the future"})
	}
	return v.check(in, extra)
}

// Apply validates an application.
func (v *Validator) Apply(in ApplyInput) error {
	return v.check(in, nil)
}

// Hire validates a hire.
func (v *Validator) Hire(in HireInput) error {
	return v.check(in, nil)
}

// CloseJob validates a close.
func (v *Validator) CloseJob(in CloseJobInput) error {
	return v.check(in, nil)
}

// ProfileID validates the id of an existing profile.
func (v *Validator) ProfileID(id string) error {
	if !ledger.IsValidAddress(id) {
		return &ValidationError{Fields: []FieldError{{Field: "profileId", Message: addressMessage}}}
	}
	return nil
}

const addressMessage = "must be a 0x-prefixed hex id of at most 32 bytes"

func (v *Validator) check(in any, extra []FieldError) error {
	var fields []FieldError

	if err := v.v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}
	fields = append(fields, extra...)

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice:
		unit = " items"
	}

	switch fe.Tag() {
	case "notblank", "required":
		return "must not be blank"
	case "ledgeraddr":
		return addressMessage
	case "utf8":
		return "must be valid UTF-8"
	case "url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + unit
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + unit
		}
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
