package email

import "strconv"

// Message is everything needed to send one templated email. It is also the
// payload of the email job, so field names are part of the queue format.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template Template          `json:"template"`
	Data     map[string]string `json:"data"`
}

// WelcomeMessage greets a newly registered user.
func WelcomeMessage(to, name string) Message {
	return Message{
		To:       to,
		Subject:  "Welcome to Campaigns!",
		Template: TemplateWelcome,
		Data: map[string]string{
			"UserName": name,
		},
	}
}

// CampaignCreatedMessage confirms a campaign to its owner. budget is in minor units.
func CampaignCreatedMessage(to, name, title string, budget int64, currency string) Message {
	return Message{
		To:       to,
		Subject:  "Your campaign " + title + " was created",
		Template: TemplateCampaignCreated,
		Data: map[string]string{
			"UserName":      name,
			"CampaignTitle": title,
			"Budget":        formatMinorUnits(budget),
			"Currency":      currency,
		},
	}
}

func formatMinorUnits(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	cents := amount % 100
	pad := ""
	if cents < 10 {
		pad = "0"
	}
	return sign + strconv.FormatInt(amount/100, 10) + "." + pad + strconv.FormatInt(cents, 10)
}
