package generateimage

import (
	"time"

	"template-service/internal/common/logger"
	"template-service/internal/common/observability"
)

// Submitted form field names. "artical_url" is the historical spelling the
// CRM forms and the render service both use.
const (
	FieldTemplateType       = "template_type"
	FieldCustomTemplateType = "custom_template_type"
	FieldTitle              = "title"
	FieldDescription        = "description"
	FieldCategory           = "category"
	FieldArticleURL         = "artical_url"
	FieldSubText            = "sub_text"
	FieldCropMode           = "crop_mode"
	FieldShowArrow          = "show_arrow"
	FieldLocation           = "location"
	FieldImage              = "image"
	FieldLogoPosition       = "logo_position"
	FieldTextToHighlight    = "text_to_hl"
)

// Template types with dedicated handling. Anything else uses the default
// mapping.
const (
	TypeWebNewsStory          = "web_news_story"
	TypeWebNewsStory2         = "web_news_story_2"
	TypeWebNews               = "web_news"
	TypeReformaWebNewsStory1  = "reforma_web_news_story1"
	TypeReformaWebNewsStory2  = "reforma_web_news_story2"
	TypeReformaWebNewsStoryV2 = "reforma_web_news_story_2"
	TypeFeedBasic             = "feed_basic"
	TypeFeedLocation          = "feed_location"
	TypeFeedHeadline          = "feed_headline"
	TypeFeedHighlight         = "feed_highlight"
	TypeQuote                 = "quote"
)

// TemplateFields are the text inputs of a generation request.
type TemplateFields struct {
	TemplateType       string
	CustomTemplateType string
	Title              string
	Description        string
	Category           string
	SubText            string
	CropMode           string
	ShowArrow          string
	Location           string
	ArticleURL         string
	LogoPosition       string
	TextToHighlight    string
}

// FieldsFromMap reads TemplateFields from submitted form values.
func FieldsFromMap(values map[string]string) TemplateFields {
	return TemplateFields{
		TemplateType:       values[FieldTemplateType],
		CustomTemplateType: values[FieldCustomTemplateType],
		Title:              values[FieldTitle],
		Description:        values[FieldDescription],
		Category:           values[FieldCategory],
		SubText:            values[FieldSubText],
		CropMode:           values[FieldCropMode],
		ShowArrow:          values[FieldShowArrow],
		Location:           values[FieldLocation],
		ArticleURL:         values[FieldArticleURL],
		LogoPosition:       values[FieldLogoPosition],
		TextToHighlight:    values[FieldTextToHighlight],
	}
}

// Map returns the non-empty fields keyed by their form names.
func (f TemplateFields) Map() map[string]string {
	out := make(map[string]string, 12)
	for _, name := range []string{
		FieldTemplateType, FieldCustomTemplateType, FieldTitle, FieldDescription,
		FieldCategory, FieldSubText, FieldCropMode, FieldShowArrow, FieldLocation,
		FieldArticleURL, FieldLogoPosition, FieldTextToHighlight,
	} {
		if v := f.Get(name); v != "" {
			out[name] = v
		}
	}
	return out
}

// Get returns the value of the form field called name.
func (f TemplateFields) Get(name string) string {
	switch name {
	case FieldTemplateType:
		return f.TemplateType
	case FieldCustomTemplateType:
		return f.CustomTemplateType
	case FieldTitle:
		return f.Title
	case FieldDescription:
		return f.Description
	case FieldCategory:
		return f.Category
	case FieldSubText:
		return f.SubText
	case FieldCropMode:
		return f.CropMode
	case FieldShowArrow:
		return f.ShowArrow
	case FieldLocation:
		return f.Location
	case FieldArticleURL:
		return f.ArticleURL
	case FieldLogoPosition:
		return f.LogoPosition
	case FieldTextToHighlight:
		return f.TextToHighlight
	}
	return ""
}

// Image is an optional uploaded picture.
type Image struct {
	Name string
	Data []byte
}

// TemplateRequest is one generation request.
type TemplateRequest struct {
	RequestID string
	Fields    TemplateFields
	Image     *Image
}

func (r *TemplateRequest) hasImage() bool {
	return r.Image != nil && len(r.Image.Data) > 0
}

// Response statuses.
const (
	StatusFailed  = 0
	StatusSuccess = 1
)

// TemplateResponse is the result shown to callers. Status 1 carries Img,
// status 0 carries Msg.
type TemplateResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg,omitempty"`
	Img    string `json:"img,omitempty"`
}

// Input is the job variable shape accepted by the workflow worker.
type Input struct {
	TemplateType       string `json:"template_type"`
	CustomTemplateType string `json:"custom_template_type,omitempty"`
	Title              string `json:"title,omitempty"`
	Description        string `json:"description,omitempty"`
	Category           string `json:"category,omitempty"`
	ArticleURL         string `json:"artical_url,omitempty"`
	SubText            string `json:"sub_text,omitempty"`
	CropMode           string `json:"crop_mode,omitempty"`
	ShowArrow          string `json:"show_arrow,omitempty"`
	Location           string `json:"location,omitempty"`
	LogoPosition       string `json:"logo_position,omitempty"`
	TextToHighlight    string `json:"text_to_hl,omitempty"`
}

func (in *Input) toFields() TemplateFields {
	return TemplateFields{
		TemplateType:       in.TemplateType,
		CustomTemplateType: in.CustomTemplateType,
		Title:              in.Title,
		Description:        in.Description,
		Category:           in.Category,
		SubText:            in.SubText,
		CropMode:           in.CropMode,
		ShowArrow:          in.ShowArrow,
		Location:           in.Location,
		ArticleURL:         in.ArticleURL,
		LogoPosition:       in.LogoPosition,
		TextToHighlight:    in.TextToHighlight,
	}
}

// Output is written back to the process instance.
type Output struct {
	TemplateStatus  int       `json:"templateStatus"`
	TemplateMessage string    `json:"templateMessage,omitempty"`
	TemplateImage   string    `json:"templateImage,omitempty"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

type ServiceDependencies struct {
	Logger        logger.Logger
	Uploader      Uploader
	Renderer      Renderer
	Cache         UploadCache
	Observability *observability.Observability
	Clock         func() time.Time
}
