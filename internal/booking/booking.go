// Package booking validates and normalizes lead-capture form input.
package booking

import (
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Code identifies why a field was rejected.
type Code string

const (
	CodeTooShort Code = "too_short"
	CodeInvalid  Code = "invalid"
)

// Form field names shared by the HTML form, the JSON API and error maps.
const (
	FieldName          = "name"
	FieldPhone         = "phone"
	FieldCarModel      = "carModel"
	FieldService       = "service"
	FieldPackage       = "package"
	FieldPreferredDate = "preferredDate"
	FieldPreferredTime = "preferredTime"
	FieldComment       = "comment"
)

// Form is raw user input as submitted.
type Form struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	CarModel      string `json:"carModel,omitempty"`
	Service       string `json:"service,omitempty"`
	Package       string `json:"package,omitempty"`
	PreferredDate string `json:"preferredDate,omitempty"`
	PreferredTime string `json:"preferredTime,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// Request is a validated booking. Optional fields are empty when absent.
type Request struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	CarModel      string `json:"carModel,omitempty"`
	Service       string `json:"service,omitempty"`
	Package       string `json:"package,omitempty"`
	PreferredDate string `json:"preferredDate,omitempty"`
	PreferredTime string `json:"preferredTime,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// WithPhone returns a copy of r carrying phone.
func (r Request) WithPhone(phone string) Request {
	r.Phone = phone
	return r
}

// FieldErrors maps form field names to rejection codes.
type FieldErrors map[string]Code

// Has reports whether field was rejected.
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Fields returns the rejected field names in form order.
func (fe FieldErrors) Fields() []string {
	out := make([]string, 0, len(fe))
	for _, f := range formOrder {
		if fe.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

var formOrder = []string{
	FieldName, FieldPhone, FieldCarModel, FieldService,
	FieldPackage, FieldPreferredDate, FieldPreferredTime, FieldComment,
}

// rules carries the only two constrained fields. Name is trimmed before checking,
// phone is checked raw.
type rules struct {
	Name  string `json:"name" validate:"min=2"`
	Phone string `json:"phone" validate:"min=10"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks form and returns the normalized request. A non-empty FieldErrors
// means the request must not be dispatched.
func Validate(form Form) (Request, FieldErrors) {
	name := strings.TrimSpace(form.Name)
	errs := FieldErrors{}

	if err := validate.Struct(rules{Name: name, Phone: form.Phone}); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs[FieldName] = CodeInvalid
			return Request{}, errs
		}
		for _, fe := range verrs {
			errs[fe.Field()] = codeFor(fe.Tag())
		}
		return Request{}, errs
	}

	return Request{
		Name:          name,
		Phone:         strings.TrimSpace(form.Phone),
		CarModel:      strings.TrimSpace(form.CarModel),
		Service:       strings.TrimSpace(form.Service),
		Package:       strings.TrimSpace(form.Package),
		PreferredDate: strings.TrimSpace(form.PreferredDate),
		PreferredTime: strings.TrimSpace(form.PreferredTime),
		Comment:       strings.TrimSpace(form.Comment),
	}, nil
}

func codeFor(tag string) Code {
	switch tag {
	case "min":
		return CodeTooShort
	default:
		return CodeInvalid
	}
}

// ParseForm reads the booking fields from url-encoded values.
func ParseForm(values url.Values) Form {
	return Form{
		Name:          values.Get(FieldName),
		Phone:         values.Get(FieldPhone),
		CarModel:      values.Get(FieldCarModel),
		Service:       values.Get(FieldService),
		Package:       values.Get(FieldPackage),
		PreferredDate: values.Get(FieldPreferredDate),
		PreferredTime: values.Get(FieldPreferredTime),
		Comment:       values.Get(FieldComment),
	}
}

// Value returns the raw value of the named field.
func (f Form) Value(field string) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldPhone:
		return f.Phone
	case FieldCarModel:
		return f.CarModel
	case FieldService:
		return f.Service
	case FieldPackage:
		return f.Package
	case FieldPreferredDate:
		return f.PreferredDate
	case FieldPreferredTime:
		return f.PreferredTime
	case FieldComment:
		return f.Comment
	}
	return ""
}

// TimeSlots are the bookable hours offered by the form.
var TimeSlots = []string{
	"09:00", "10:00", "11:00", "12:00", "13:00", "14:00",
	"15:00", "16:00", "17:00", "18:00", "19:00",
}
