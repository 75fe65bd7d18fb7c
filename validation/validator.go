// Package validation checks payout payloads against corridor JSON Schemas.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/corridorhq/copilot/corridor"
)

// FieldError is a single validation failure. The wire names follow the
// responses the docs widget already consumes.
type FieldError struct {
	Path        string `json:"path"`
	Message     string `json:"message"`
	Keyword     string `json:"validator,omitempty"`
	Field       string `json:"field,omitempty"`
	Description string `json:"schema_description,omitempty"`
	Pattern     string `json:"schema_pattern,omitempty"`
}

type Result struct {
	Valid   bool         `json:"valid"`
	Errors  []FieldError `json:"errors"`
	Method  string       `json:"method,omitempty"`
	Channel string       `json:"channel,omitempty"`
}

type Validator struct {
	registry *corridor.Registry
}

func New(registry *corridor.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate looks up the corridor schema, narrows it to the selected payout
// method and channel, and runs Draft 2020-12 validation. Missing corridors,
// methods, or channels yield a failed result rather than an error; only
// malformed schemas surface as errors.
func (v *Validator) Validate(payload map[string]any, currency, country, method, channel string) (Result, error) {
	c, ok := v.registry.Find(currency, country)
	if !ok {
		return Result{
			Valid: false,
			Errors: []FieldError{{
				Path:    "",
				Message: fmt.Sprintf("no validation schema found for %s/%s", strings.ToUpper(currency), strings.ToUpper(country)),
			}},
		}, nil
	}

	schema, err := v.registry.Schema(c)
	if err != nil {
		return Result{}, err
	}

	target := schema
	var methodKey, channelKey string
	if methods := corridor.Methods(schema); methods != nil {
		var methodBlock map[string]any
		methodKey, methodBlock = corridor.SelectMethod(methods, method)
		if methodBlock == nil {
			return Result{
				Valid: false,
				Errors: []FieldError{{
					Path:    "",
					Message: fmt.Sprintf("no payout methods available for %s/%s (found: %s)", c.Currency, c.Country, strings.Join(sortedKeys(methods), ", ")),
				}},
			}, nil
		}

		var channelSchema map[string]any
		channelKey, channelSchema = corridor.SelectChannel(methodBlock, channel)
		if channelSchema == nil {
			requested := channel
			if requested == "" {
				requested, _ = methodBlock["default_channel"].(string)
			}
			channels, _ := methodBlock["channels"].(map[string]any)
			return Result{
				Valid: false,
				Errors: []FieldError{{
					Path: "",
					Message: fmt.Sprintf("channel %q not available for method %q (choices: %s)",
						requested, methodKey, strings.Join(sortedKeys(channels), ", ")),
				}},
				Method: methodKey,
			}, nil
		}
		target = channelSchema
	}

	fieldErrors, err := validateAgainst(target, payload)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Valid:   len(fieldErrors) == 0,
		Errors:  fieldErrors,
		Method:  methodKey,
		Channel: channelKey,
	}, nil
}

func validateAgainst(target map[string]any, payload map[string]any) ([]FieldError, error) {
	raw, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("encode corridor schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("corridor.json", strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("register corridor schema: %w", err)
	}
	compiled, err := compiler.Compile("corridor.json")
	if err != nil {
		return nil, fmt.Errorf("compile corridor schema: %w", err)
	}

	// The validator operates on generically decoded JSON.
	instance := toJSONValue(payload)
	err = compiled.Validate(instance)
	if err == nil {
		return nil, nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validate payload: %w", err)
	}

	properties, _ := target["properties"].(map[string]any)
	fieldErrors := make([]FieldError, 0)
	for _, leaf := range leafCauses(ve) {
		fieldErrors = append(fieldErrors, describeCause(leaf, properties)...)
	}
	return fieldErrors, nil
}

// leafCauses flattens the validation error tree to the innermost failures.
func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		leaves = append(leaves, leafCauses(cause)...)
	}
	return leaves
}

func describeCause(cause *jsonschema.ValidationError, properties map[string]any) []FieldError {
	path := instancePath(cause.InstanceLocation)
	keyword := lastSegment(cause.KeywordLocation)

	switch keyword {
	case "required":
		missing := missingProperties(cause.Message)
		if len(missing) == 0 {
			return []FieldError{{Path: path, Message: cause.Message, Keyword: keyword}}
		}
		result := make([]FieldError, 0, len(missing))
		for _, field := range missing {
			fe := FieldError{
				Path:    path,
				Message: fmt.Sprintf("missing required field %q", field),
				Keyword: keyword,
				Field:   field,
			}
			if meta, ok := properties[field].(map[string]any); ok {
				fe.Description, _ = meta["description"].(string)
				fe.Pattern, _ = meta["pattern"].(string)
			}
			result = append(result, fe)
		}
		return result
	case "pattern":
		fe := FieldError{Path: path, Message: cause.Message, Keyword: keyword}
		if field := lastSegment(path); field != "" {
			fe.Field = field
			if meta, ok := properties[field].(map[string]any); ok {
				fe.Description, _ = meta["description"].(string)
				fe.Pattern, _ = meta["pattern"].(string)
			}
		}
		return []FieldError{fe}
	default:
		return []FieldError{{Path: path, Message: cause.Message, Keyword: keyword}}
	}
}

// missingProperties parses the field names out of a Draft 2020-12 "missing
// properties" message.
func missingProperties(message string) []string {
	const prefix = "missing properties: "
	idx := strings.Index(message, prefix)
	if idx < 0 {
		return nil
	}
	rest := message[idx+len(prefix):]
	parts := strings.Split(rest, ",")
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		field := strings.Trim(strings.TrimSpace(part), `'"`)
		if field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

func instancePath(location string) string {
	trimmed := strings.TrimPrefix(location, "/")
	if trimmed == "" {
		return ""
	}
	return strings.ReplaceAll(trimmed, "/", ".")
}

func lastSegment(location string) string {
	if location == "" {
		return ""
	}
	segments := strings.FieldsFunc(location, func(r rune) bool { return r == '/' || r == '.' })
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// toJSONValue normalizes a decoded payload to the value types the schema
// library expects.
func toJSONValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = toJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = toJSONValue(item)
		}
		return out
	case int:
		return json.Number(fmt.Sprintf("%d", v))
	case float32:
		return float64(v)
	default:
		return v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
