// Package skills implements the validated input schemas and dispatch entry points
// for every agent skill. Each skill exposes a pure Parse constructor that turns an
// untyped parameter map into a fully validated input, and an Execute entry point
// that delegates to the injected service and persistence clients.
package skills

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// crossFieldValidator is implemented by inputs whose validity depends on more than
// one field. It only runs once every individual field check has passed.
type crossFieldValidator interface {
	crossFieldErrors() []skilltypes.FieldError
}

// parseInput decodes raw on top of defaults, validates each field and then runs
// cross-field checks. Nothing is returned unless every check passes.
func parseInput[T any](skill string, raw map[string]any, defaults T) (*T, error) {
	in := defaults
	if err := decodeInput(skill, raw, &in); err != nil {
		return nil, err
	}
	if err := validateFields(skill, &in); err != nil {
		return nil, err
	}
	if c, ok := any(&in).(crossFieldValidator); ok {
		if fieldErrs := c.crossFieldErrors(); len(fieldErrs) > 0 {
			return nil, skilltypes.NewValidationError(skill, fieldErrs...)
		}
	}
	return &in, nil
}

func decodeInput(skill string, raw map[string]any, out any) error {
	if fieldErrs := nullFieldErrors(raw, out); len(fieldErrs) > 0 {
		return skilltypes.NewValidationError(skill, fieldErrs...)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		DecodeHook: rejectFractionalInts,
	})
	if err != nil {
		return skilltypes.NewValidationError(skill, skilltypes.FieldError{Field: "input", Rule: "decode", Message: err.Error()})
	}
	if err := decoder.Decode(raw); err != nil {
		return skilltypes.NewValidationError(skill, decodeFieldErrors(err)...)
	}
	return nil
}

// nullFieldErrors reports keys explicitly set to null whose field cannot hold
// null. mapstructure skips nil values, which would leave the default in place.
func nullFieldErrors(raw map[string]any, out any) []skilltypes.FieldError {
	nullable := make(map[string]bool)
	collectFields(reflect.TypeOf(out).Elem(), nullable)

	var fieldErrs []skilltypes.FieldError
	for key, value := range raw {
		if value != nil {
			continue
		}
		if canBeNull, known := nullable[key]; known && !canBeNull {
			fieldErrs = append(fieldErrs, skilltypes.FieldError{Field: key, Rule: "type", Message: "must not be null"})
		}
	}
	sort.Slice(fieldErrs, func(i, j int) bool { return fieldErrs[i].Field < fieldErrs[j].Field })
	return fieldErrs
}

// collectFields maps each mapstructure key of t, including squashed embedded
// structs, to whether its field accepts null.
func collectFields(t reflect.Type, nullable map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		name, opts, _ := strings.Cut(tag, ",")
		if f.Anonymous && strings.Contains(opts, "squash") && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, nullable)
			continue
		}
		if name == "" || name == "-" || !f.IsExported() {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
			nullable[name] = true
		default:
			nullable[name] = false
		}
	}
}

// rejectFractionalInts stops mapstructure from silently truncating 30.5 into 30
// or wrapping values too large for the target integer.
func rejectFractionalInts(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Float64 && from.Kind() != reflect.Float32 {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f := reflect.ValueOf(data).Float()
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected an integer, got %v", f)
		}
		if f < math.MinInt64 || f >= math.MaxInt64 || reflect.New(to).Elem().OverflowInt(int64(f)) {
			return nil, fmt.Errorf("%v is out of range", f)
		}
	}
	return data, nil
}

var quotedField = regexp.MustCompile(`'([^']*)'`)

func decodeFieldErrors(err error) []skilltypes.FieldError {
	var messages []string
	if merr, ok := err.(*mapstructure.Error); ok {
		messages = merr.Errors
	} else {
		messages = []string{err.Error()}
	}

	fieldErrs := make([]skilltypes.FieldError, 0, len(messages))
	for _, msg := range messages {
		field := "input"
		if m := quotedField.FindStringSubmatch(msg); m != nil && m[1] != "" {
			field = m[1]
		}
		fieldErrs = append(fieldErrs, skilltypes.FieldError{Field: field, Rule: "type", Message: msg})
	}
	return fieldErrs
}

func validateFields(skill string, in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return skilltypes.NewValidationError(skill, skilltypes.FieldError{Field: "input", Rule: "struct", Message: err.Error()})
	}

	fieldErrs := make([]skilltypes.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fieldErrs = append(fieldErrs, skilltypes.FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: ruleMessage(fe),
		})
	}
	return skilltypes.NewValidationError(skill, fieldErrs...)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of %s, got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// GenerateSchema generates the JSON schema for a skill input type.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T

	return reflector.Reflect(v)
}
