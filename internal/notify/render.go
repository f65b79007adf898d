package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[string]mailTemplate{
	KindOrderPlaced: parse(
		"Order {{.ReferenceNo}} received",
		`Hi {{.Name}},

Thanks for your order of "{{.ProductTitle}}".
Reference number: {{.ReferenceNo}}
Amount: {{.Amount}} BDT

Complete the bKash payment to receive your download link.
`),
	KindOrderPaid: parse(
		"Your ebook {{.ProductTitle}} is ready",
		`Hi {{.Name}},

We received your payment for order {{.ReferenceNo}}.
bKash transaction: {{.TrxID}}

Download your ebook here:
{{.DownloadURL}}
`),
	KindReviewApproved: parse(
		"Your review is live",
		`Hi {{.Name}},

Your review "{{.ReviewTitle}}" for "{{.ProductTitle}}" has been approved and is now visible.
`),
}

func parse(subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

// Render produces the mail subject and plain text body for msg.
func Render(msg Message) (string, string, error) {
	if err := msg.Validate(); err != nil {
		return "", "", err
	}
	t := templates[msg.Kind]

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, msg); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&body, msg); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject.String(), body.String(), nil
}
