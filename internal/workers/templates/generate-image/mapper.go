package generateimage

import "strings"

// Remote render parameter names.
const (
	ParamTemplateType  = "template_type"
	ParamText          = "text"
	ParamSubText       = "sub_text"
	ParamArrow         = "arrow"
	ParamCategory      = "category"
	ParamDescription   = "description"
	ParamLocation      = "location"
	ParamLogoPosition  = "logo_position"
	ParamTextHighlight = "text_to_hl"
	ParamCropMode      = "crop_mode"
	ParamSessionID     = "session_id"
	ParamOutputPath    = "output_img_path"
	ParamArticleURL    = "artical_url"
	ParamIsArticle     = "is_article"
	ParamImagePath     = "image_path"
)

const cropModeStory = "story"

// RenderPayload is the outbound render request. It holds exactly one value
// per key and keeps keys in insertion order.
type RenderPayload struct {
	keys   []string
	values map[string]string
}

func NewRenderPayload() *RenderPayload {
	return &RenderPayload{values: make(map[string]string)}
}

// Set replaces any existing value for key and moves key to the end.
func (p *RenderPayload) Set(key, value string) {
	p.Del(key)
	p.keys = append(p.keys, key)
	p.values[key] = value
}

func (p *RenderPayload) Del(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

func (p *RenderPayload) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p *RenderPayload) Keys() []string {
	return append([]string(nil), p.keys...)
}

func (p *RenderPayload) Len() int {
	return len(p.keys)
}

func (p *RenderPayload) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

type fieldCopy struct {
	from string
	to   string
}

type constant struct {
	key   string
	value string
}

// variant describes how one template type populates the render payload.
type variant struct {
	copies    []fieldCopy
	constants []constant
	// customType lets custom_template_type replace the remote template_type.
	customType bool
}

var (
	defaultCopies = []fieldCopy{
		{FieldTitle, ParamText},
		{FieldSubText, ParamSubText},
		{FieldShowArrow, ParamArrow},
		{FieldCategory, ParamCategory},
	}

	newsCopies = []fieldCopy{
		{FieldTitle, ParamText},
		{FieldDescription, ParamDescription},
		{FieldCategory, ParamCategory},
		{FieldShowArrow, ParamArrow},
	}

	reformaCopies = []fieldCopy{
		{FieldTitle, ParamText},
		{FieldCategory, ParamCategory},
		{FieldLogoPosition, ParamLogoPosition},
		{FieldShowArrow, ParamArrow},
	}

	storyCrop = []constant{{ParamCropMode, cropModeStory}}
)

var defaultVariant = variant{copies: defaultCopies}

var variants = map[string]variant{
	TypeWebNewsStory:  {copies: newsCopies, constants: storyCrop, customType: true},
	TypeWebNewsStory2: {copies: newsCopies, constants: storyCrop},
	TypeWebNews:       {copies: newsCopies},

	TypeReformaWebNewsStory1:  {copies: reformaCopies, constants: storyCrop},
	TypeReformaWebNewsStory2:  {copies: reformaCopies, constants: storyCrop},
	TypeReformaWebNewsStoryV2: {copies: reformaCopies, constants: storyCrop},

	TypeFeedBasic: {copies: defaultCopies},
	TypeFeedLocation: {copies: []fieldCopy{
		{FieldTitle, ParamText},
		{FieldCategory, ParamSubText},
		{FieldLocation, ParamLocation},
		{FieldShowArrow, ParamArrow},
	}},
	TypeFeedHeadline: {copies: []fieldCopy{
		{FieldTitle, ParamText},
		{FieldSubText, ParamCategory},
		{FieldShowArrow, ParamArrow},
	}},
	TypeFeedHighlight: {copies: []fieldCopy{
		{FieldTitle, ParamText},
		{FieldTextToHighlight, ParamTextHighlight},
		{FieldCategory, ParamCategory},
		{FieldShowArrow, ParamArrow},
	}},
	TypeQuote: {copies: []fieldCopy{
		{FieldDescription, ParamText},
		{FieldTitle, ParamSubText},
	}},
}

func variantFor(templateType string) variant {
	if v, ok := variants[templateType]; ok {
		return v
	}
	return defaultVariant
}

// MapFields writes the template specific parameters of f into p. Unknown
// template types use the default mapping.
func MapFields(p *RenderPayload, f TemplateFields) {
	v := variantFor(f.TemplateType)

	templateType := f.TemplateType
	if custom := strings.TrimSpace(f.CustomTemplateType); v.customType && custom != "" {
		templateType = custom
	}
	p.Set(ParamTemplateType, templateType)

	for _, c := range v.copies {
		if value := f.Get(c.from); value != "" {
			p.Set(c.to, value)
		}
	}
	for _, c := range v.constants {
		p.Set(c.key, c.value)
	}
}
