package generateimage

import (
	"strings"

	"template-service/internal/common/validation"
)

// MessageSeparator joins validation messages for display in the CRM forms.
const MessageSeparator = "<br>"

const msgArticleOrImage = "Please provide either an article URL or an image"

// ValidationResult is the outcome of validating one request.
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

// Message returns all errors joined for display.
func (r ValidationResult) Message() string {
	return strings.Join(r.Errors, MessageSeparator)
}

var (
	ruleTemplateType = validation.FieldRule{Field: FieldTemplateType, Label: "Template type", Required: true, MaxLen: 100}
	ruleShowArrow    = validation.FieldRule{Field: FieldShowArrow, Label: "Show arrow", Type: validation.TypeBool}
	ruleArticleURL   = validation.FieldRule{Field: FieldArticleURL, Label: "Article URL", Type: validation.TypeURL}
	ruleTitle        = validation.FieldRule{Field: FieldTitle, Label: "Title", Required: true, MaxLen: 255}
	ruleDescription  = validation.FieldRule{Field: FieldDescription, Label: "Description", MaxLen: 2000}
	ruleSubText      = validation.FieldRule{Field: FieldSubText, Label: "Sub text", MaxLen: 255}
	ruleCategory     = validation.FieldRule{Field: FieldCategory, Label: "Category", MaxLen: 100}
)

func required(rule validation.FieldRule) validation.FieldRule {
	rule.Required = true
	return rule
}

func ruleSet(rules ...validation.FieldRule) []validation.FieldRule {
	base := []validation.FieldRule{ruleTemplateType}
	base = append(base, rules...)
	return append(base, ruleShowArrow)
}

// articleRules apply when a news template is generated from an article URL.
var articleRules = ruleSet(
	required(ruleArticleURL),
	ruleCategory,
)

var defaultRules = ruleSet(ruleArticleURL)

var newsRules = ruleSet(ruleTitle, ruleDescription, ruleCategory, ruleArticleURL)

var templateRules = map[string][]validation.FieldRule{
	TypeFeedBasic:    ruleSet(ruleTitle, ruleSubText, ruleCategory),
	TypeFeedLocation: ruleSet(ruleTitle, required(validation.FieldRule{Field: FieldLocation, Label: "Location", MaxLen: 255}), ruleCategory),
	TypeFeedHeadline: ruleSet(ruleTitle, required(ruleSubText)),
	TypeFeedHighlight: ruleSet(
		ruleTitle,
		required(validation.FieldRule{Field: FieldTextToHighlight, Label: "Text to highlight", MaxLen: 255}),
	),
	TypeQuote: ruleSet(required(validation.FieldRule{Field: FieldDescription, Label: "Quote", MaxLen: 2000}), ruleTitle),

	TypeWebNewsStory:  newsRules,
	TypeWebNewsStory2: newsRules,
	TypeWebNews:       newsRules,

	TypeReformaWebNewsStory1:  ruleSet(ruleTitle, required(ruleCategory)),
	TypeReformaWebNewsStory2:  ruleSet(ruleTitle, required(ruleCategory)),
	TypeReformaWebNewsStoryV2: ruleSet(ruleTitle, required(ruleCategory)),
}

func isArticleType(templateType string) bool {
	switch templateType {
	case TypeWebNewsStory, TypeWebNewsStory2, TypeWebNews:
		return true
	}
	return false
}

// IsArticle reports whether the request renders from an article URL rather
// than from typed-in text.
func IsArticle(fields map[string]string, templateType string) bool {
	return isArticleType(templateType) && strings.TrimSpace(fields[FieldArticleURL]) != ""
}

// Validator checks submitted fields before any network I/O.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate selects a rule set by template type and collects every failure.
// fields should carry FieldImage with a non-empty value when a file was
// submitted.
func (v *Validator) Validate(fields map[string]string, templateType string) ValidationResult {
	rules, ok := templateRules[templateType]
	if !ok {
		rules = defaultRules
	}
	if IsArticle(fields, templateType) {
		rules = articleRules
	}

	var errs []string
	if isArticleType(templateType) &&
		strings.TrimSpace(fields[FieldArticleURL]) == "" &&
		strings.TrimSpace(fields[FieldImage]) == "" {
		errs = append(errs, msgArticleOrImage)
	}
	errs = append(errs, validation.ValidateFields(fields, rules)...)

	return ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

// GetInputSchema describes the job variables accepted by the workflow
// worker. Process instances carry unrelated variables, so extra fields pass.
func GetInputSchema() validation.JSONSchema {
	text := func(description string, maxLen int) validation.Property {
		return validation.Property{Type: "string", Description: description, MaxLength: validation.IntPtr(maxLen)}
	}
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{FieldTemplateType},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			FieldTemplateType: {
				Type:        "string",
				Description: "Template layout to render",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(100),
			},
			FieldCustomTemplateType: text("Replacement remote template type", 100),
			FieldTitle:              text("Headline text", 255),
			FieldDescription:        text("Body or quote text", 2000),
			FieldCategory:           text("Category label", 100),
			FieldArticleURL:         text("Source article URL", 2048),
			FieldSubText:            text("Secondary text", 255),
			FieldCropMode:           text("Crop mode", 50),
			FieldLocation:           text("Location label", 255),
			FieldLogoPosition:       text("Logo position", 50),
			FieldTextToHighlight:    text("Highlighted text", 255),
			// show_arrow arrives as a string or a boolean depending on the modeler.
			FieldShowArrow: {Description: "Whether to draw the arrow"},
		},
	}
}
