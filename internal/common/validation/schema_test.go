package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFields(t *testing.T) {
	rules := []FieldRule{
		{Field: "title", Label: "Title", Required: true, MaxLen: 10},
		{Field: "artical_url", Label: "Article URL", Type: TypeURL},
		{Field: "show_arrow", Label: "Show arrow", Type: TypeBool},
		{Field: "category", Required: true},
	}

	t.Run("all good", func(t *testing.T) {
		msgs := ValidateFields(map[string]string{
			"title":       "Hello",
			"artical_url": "https://example.com/a",
			"show_arrow":  "1",
			"category":    "news",
		}, rules)
		assert.Empty(t, msgs)
	})

	t.Run("collects every failure in rule order", func(t *testing.T) {
		msgs := ValidateFields(map[string]string{
			"title":       "a title that is far too long",
			"artical_url": "not a url",
			"show_arrow":  "maybe",
		}, rules)
		assert.Equal(t, []string{
			"Title may not be greater than 10 characters",
			"Article URL must be a valid URL",
			"Show arrow must be true or false",
			"category is required",
		}, msgs)
	})

	t.Run("whitespace counts as missing", func(t *testing.T) {
		msgs := ValidateFields(map[string]string{"title": "   ", "category": "x"}, rules)
		assert.Equal(t, []string{"Title is required"}, msgs)
	})
}

func TestValidateInput(t *testing.T) {
	schema := JSONSchema{
		Type:     "object",
		Required: []string{"template_type"},
		Properties: map[string]Property{
			"template_type": {Type: "string", MinLength: IntPtr(1)},
			"fields":        {Type: "object"},
		},
	}

	result := ValidateInput(map[string]interface{}{
		"template_type": "feed_basic",
		"fields":        map[string]interface{}{"title": "x"},
	}, schema)
	assert.True(t, result.Valid)

	result = ValidateInput(map[string]interface{}{
		"fields": "nope",
		"extra":  true,
	}, schema)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 3)
	assert.Contains(t, result.GetErrorMessages(), "template_type: required field missing")
}

func TestValidateURL(t *testing.T) {
	assert.True(t, ValidateURL("https://example.com/news/1"))
	assert.True(t, ValidateURL("http://localhost:8000/x"))
	assert.False(t, ValidateURL("example.com"))
	assert.False(t, ValidateURL("https://"))
}
