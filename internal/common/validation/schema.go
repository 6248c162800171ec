package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// JSONSchema defines the structure for input schemas applied to job
// variables.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateInput validates input against JSON schema with detailed errors
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	errors := []ValidationError{}

	for _, requiredField := range schema.Required {
		if _, exists := input[requiredField]; !exists {
			errors = append(errors, ValidationError{
				Field:   requiredField,
				Message: "required field missing",
				Code:    "REQUIRED_FIELD_MISSING",
			})
		}
	}

	for fieldName, value := range input {
		prop, exists := schema.Properties[fieldName]
		if !exists {
			if !schema.AdditionalProperties {
				errors = append(errors, ValidationError{
					Field:   fieldName,
					Message: "field not allowed in schema",
					Code:    "EXTRA_FIELD",
				})
			}
			continue
		}
		errors = append(errors, validateField(fieldName, value, prop)...)
	}

	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateField(fieldName string, value interface{}, prop Property) []ValidationError {
	if typeErr := validateType(value, prop.Type); typeErr != nil {
		return []ValidationError{{
			Field:   fieldName,
			Message: typeErr.Error(),
			Code:    "INVALID_TYPE",
		}}
	}

	strVal, ok := value.(string)
	if !ok {
		return nil
	}

	var errors []ValidationError
	if prop.MinLength != nil && len(strVal) < *prop.MinLength {
		errors = append(errors, ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("value must be at least %d characters", *prop.MinLength),
			Code:    "MIN_LENGTH_VIOLATION",
		})
	}
	if prop.MaxLength != nil && len(strVal) > *prop.MaxLength {
		errors = append(errors, ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("value must be at most %d characters", *prop.MaxLength),
			Code:    "MAX_LENGTH_VIOLATION",
		})
	}
	if len(prop.Enum) > 0 && !contains(prop.Enum, strVal) {
		errors = append(errors, ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("value must be one of %v", prop.Enum),
			Code:    "INVALID_ENUM_VALUE",
		})
	}
	return errors
}

func validateType(value interface{}, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	}
	return nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// FieldType is the kind of value a form field must hold.
type FieldType string

const (
	TypeText FieldType = "text"
	TypeURL  FieldType = "url"
	TypeBool FieldType = "bool"
)

// FieldRule constrains one flat form field. Label is the human readable
// name used in messages.
type FieldRule struct {
	Field    string
	Label    string
	Required bool
	Type     FieldType
	MaxLen   int
}

// ValidateFields checks flat string fields against rules and returns one
// message per failing rule, in rule order. Absent optional fields are
// skipped.
func ValidateFields(fields map[string]string, rules []FieldRule) []string {
	var messages []string
	for _, rule := range rules {
		value := strings.TrimSpace(fields[rule.Field])
		label := rule.Label
		if label == "" {
			label = rule.Field
		}

		if value == "" {
			if rule.Required {
				messages = append(messages, fmt.Sprintf("%s is required", label))
			}
			continue
		}

		switch rule.Type {
		case TypeURL:
			if !ValidateURL(value) {
				messages = append(messages, fmt.Sprintf("%s must be a valid URL", label))
				continue
			}
		case TypeBool:
			if !isBoolish(value) {
				messages = append(messages, fmt.Sprintf("%s must be true or false", label))
				continue
			}
		}

		if rule.MaxLen > 0 && len([]rune(value)) > rule.MaxLen {
			messages = append(messages, fmt.Sprintf("%s may not be greater than %d characters", label, rule.MaxLen))
		}
	}
	return messages
}

var urlPattern = regexp.MustCompile(`^(https?|ftp)://[^\s/$.?#].[^\s]*$`)

// ValidateURL validates URL format
func ValidateURL(url string) bool {
	return urlPattern.MatchString(url)
}

func isBoolish(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false", "1", "0", "on", "off", "yes", "no":
		return true
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func IntPtr(i int) *int {
	return &i
}
