package email

// PreviewData contains sample template data for local preview.
//
//	PreviewData[TemplateWelcome]["UserName"] == "Ada"
var PreviewData = map[Template]map[string]string{
	TemplateWelcome: {
		"UserName": "Ada",
	},
	TemplateCampaignCreated: {
		"UserName":      "Ada",
		"CampaignTitle": "Spring Launch",
		"Budget":        "1500.00",
		"Currency":      "NGN",
	},
}

// Preview renders templateName with its sample data.
func Preview(templateName Template) (string, error) {
	return Render(templateName, PreviewData[templateName])
}
