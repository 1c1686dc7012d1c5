package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-bribe-backend/internal/domain"
)

const (
	usernameRules = "required,min=3,max=20,alphanum"
	passwordRules = "required,min=6,max=72"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report errors by the name clients send.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// ValidateUsername enforces the username policy.
func ValidateUsername(username string) error {
	if validate.Var(username, usernameRules) != nil {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword enforces password length limits (bcrypt reads at most 72 bytes).
func ValidatePassword(password string) error {
	if validate.Var(password, passwordRules) != nil || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

// ParseIncidentDate parses an optional YYYY-MM-DD date. Blank input yields nil.
func ParseIncidentDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &t, nil
}

// ReportInput is a report submission before normalization.
type ReportInput struct {
	OfficialName string         `field:"official" validate:"max=255"`
	Department   string         `field:"department" validate:"required,max=255"`
	Amount       int64          `field:"amount" validate:"gte=0"`
	PinCode      string         `field:"pincode" validate:"omitempty,numeric,max=12"`
	State        string         `field:"state" validate:"required,max=100"`
	District     string         `field:"district" validate:"required,max=100"`
	Description  string         `field:"description" validate:"required,max=3000"`
	Date         string         `field:"date"`
	Evidence     []EvidenceFile `validate:"-"`
}

// Normalize trims every text field, tidies locations and substitutes the
// unknown-official sentinel.
func (in *ReportInput) Normalize() {
	in.OfficialName = collapseSpaces(in.OfficialName)
	if in.OfficialName == "" {
		in.OfficialName = domain.UnknownOfficial
	}
	in.Department = collapseSpaces(in.Department)
	in.PinCode = strings.TrimSpace(in.PinCode)
	in.State = normalizeLocation(in.State)
	in.District = normalizeLocation(in.District)
	in.Description = strings.TrimSpace(in.Description)
	in.Date = strings.TrimSpace(in.Date)
}

// Validate returns a *FieldError for the first invalid field.
func (in *ReportInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return &FieldError{Field: fe.Field(), Message: ruleMessage(fe)}
	}
	return err
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must not be negative"
	case "numeric":
		return "must contain only digits"
	default:
		return "is invalid"
	}
}

var spaceRE = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}

// normalizeLocation collapses whitespace and title-cases input typed entirely
// in lower or upper case. Mixed-case input is kept as written.
func normalizeLocation(s string) string {
	s = collapseSpaces(s)
	if s == strings.ToLower(s) || s == strings.ToUpper(s) {
		// Casers are stateful; build one per call.
		return cases.Title(language.English).String(s)
	}
	return s
}
