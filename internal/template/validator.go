package template

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"waba-gateway/internal/models"
)

const maxNameLength = 512

// Tags reported by the struct-level checks.
const (
	tagOneBody         = "one_body"
	tagComponentText   = "component_text"
	tagButtonPlacement = "button_placement"
	tagExampleSlots    = "example_slots"
)

var (
	namePattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	languagePattern = regexp.MustCompile(`^[a-z]{2}_[A-Z]{2}$`)
	urlPattern      = regexp.MustCompile(`^https?://.+`)
	phonePattern    = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	paramPattern    = regexp.MustCompile(`\{\{(\d+)\}\}`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json names so paths read like components[1].buttons[0].url
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("template_name", matches(namePattern))
	v.RegisterValidation("locale", matches(languagePattern))
	v.RegisterValidation("web_url", matches(urlPattern))
	v.RegisterValidation("e164ish", matches(phonePattern))
	v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterValidation("template_category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	v.RegisterValidation("template_status", func(fl validator.FieldLevel) bool {
		return models.Status(fl.Field().String()).Valid()
	})

	v.RegisterStructValidation(validateTemplateLevel, models.Template{})
	v.RegisterStructValidation(validateComponentLevel, models.Component{})
	return v
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// ParameterCount returns the highest N among the {{N}} markers in text, or 0.
// Gaps are not collapsed: "{{1}} {{3}}" needs three example slots.
func ParameterCount(text string) int {
	highest := 0
	for _, m := range paramPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

// Normalize trims free-text fields and fills the HEADER format default.
func Normalize(t *models.Template) {
	t.Name = strings.TrimSpace(t.Name)
	t.Language = strings.TrimSpace(t.Language)
	for i := range t.Components {
		c := &t.Components[i]
		c.Text = strings.TrimSpace(c.Text)
		if c.Type == models.ComponentHeader && c.Format == "" {
			c.Format = models.FormatText
		}
		for j := range c.Buttons {
			b := &c.Buttons[j]
			b.Text = strings.TrimSpace(b.Text)
			b.URL = strings.TrimSpace(b.URL)
			b.PhoneNumber = strings.TrimSpace(b.PhoneNumber)
		}
	}
}

// ValidateStructure checks every structural rule and reports all violations.
func ValidateStructure(t *models.Template) ValidationErrors {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "template", Message: err.Error()}}
	}

	errs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return errs
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "nonblank":
		return fe.Field() + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required for %s buttons", fe.Field(), strings.Fields(fe.Param())[1])
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", fe.Field(), fe.Param())
	case "min":
		return "template must have at least one component"
	case "oneof":
		return fmt.Sprintf("unknown %s %q, expected one of: %s", fe.Field(), fe.Value(), fe.Param())
	case "template_name":
		return "template name can only contain letters, numbers, underscores, and hyphens"
	case "template_category":
		return fmt.Sprintf("unknown category %q", fe.Value())
	case "template_status":
		return fmt.Sprintf("unknown status %q", fe.Value())
	case "locale":
		return "language must be in format: en_US, es_ES, etc."
	case "web_url":
		return "URL must start with http:// or https://"
	case "e164ish":
		return "phone number must be up to 16 digits with an optional leading +"
	case tagOneBody:
		return "template must have exactly one BODY component with text content, found " + fe.Param()
	case tagComponentText:
		return "text is required for HEADER and BODY components"
	case tagButtonPlacement:
		return "buttons are only allowed on BUTTONS components"
	case tagExampleSlots:
		return fmt.Sprintf("expected %s example value(s) for %s positional parameter(s), got %v",
			fe.Param(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

func validateTemplateLevel(sl validator.StructLevel) {
	t := sl.Current().Interface().(models.Template)
	if len(t.Components) == 0 {
		return
	}

	bodies := 0
	for _, c := range t.Components {
		if c.Type == models.ComponentBody {
			bodies++
		}
	}
	if bodies != 1 {
		sl.ReportError(bodies, "components", "Components", tagOneBody, strconv.Itoa(bodies))
	}
}

func validateComponentLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(models.Component)

	if c.Type == models.ComponentHeader || c.Type == models.ComponentBody {
		if strings.TrimSpace(c.Text) == "" {
			sl.ReportError(c.Text, "text", "Text", tagComponentText, "")
		} else {
			validateExample(sl, c)
		}
	}

	if len(c.Buttons) > 0 && c.Type != models.ComponentButtons {
		sl.ReportError(len(c.Buttons), "buttons", "Buttons", tagButtonPlacement, "")
	}
}

// validateExample only checks examples that were supplied; the slot count
// must match the parameter count of the component text.
func validateExample(sl validator.StructLevel, c models.Component) {
	if c.Example == nil {
		return
	}

	slots, field, structField := c.Example.BodyText, "example.body_text", "Example.BodyText"
	if c.Type == models.ComponentHeader {
		slots, field, structField = c.Example.HeaderText, "example.header_text", "Example.HeaderText"
	}
	if slots == nil {
		return
	}

	if want := ParameterCount(c.Text); len(slots) != want {
		sl.ReportError(len(slots), field, structField, tagExampleSlots, strconv.Itoa(want))
	}
}
