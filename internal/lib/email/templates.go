package email

import (
	"embed"
	"html/template"
)

// Template is a string-based enum naming email templates.
type Template string

const (
	// TemplateWelcome corresponds to templates/welcome.html
	TemplateWelcome Template = "welcome"
	// TemplateCampaignCreated corresponds to templates/campaign_created.html
	TemplateCampaignCreated Template = "campaign_created"
)

// Templates lists every template compiled into the binary.
var Templates = []Template{TemplateWelcome, TemplateCampaignCreated}

//go:embed templates/*.html
var templateFS embed.FS

// templates is parsed once at init; a malformed template panics at startup.
var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Valid reports whether t names an embedded template.
func (t Template) Valid() bool {
	return templates.Lookup(string(t)+".html") != nil
}
