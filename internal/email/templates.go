package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type leadApprovedEmailData struct {
	baseEmailData
	Product        string
	PriceFormatted string
}

type leadRejectedEmailData struct {
	baseEmailData
	Product string
	Reason  string
}

type leadSoldEmailData struct {
	baseEmailData
	Product string
}

type paymentVerifiedEmailData struct {
	baseEmailData
	Product string
}

type paymentRejectedEmailData struct {
	baseEmailData
	Product string
	Reason  string
}

func renderLeadApproved(product string, price int) (string, error) {
	return renderEmailTemplate("lead_approved.html", leadApprovedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Lead approved",
			Heading: "Your lead is live",
		},
		Product:        product,
		PriceFormatted: formatCurrencyEUR(price),
	})
}

func renderLeadRejected(product, reason string) (string, error) {
	return renderEmailTemplate("lead_rejected.html", leadRejectedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Lead rejected",
			Heading: "Your lead was not approved",
		},
		Product: product,
		Reason:  reason,
	})
}

func renderLeadSold(product string) (string, error) {
	return renderEmailTemplate("lead_sold.html", leadSoldEmailData{
		baseEmailData: baseEmailData{
			Title:   "Lead sold",
			Heading: "All seller slots are filled",
		},
		Product: product,
	})
}

func renderPaymentVerified(product string) (string, error) {
	return renderEmailTemplate("payment_verified.html", paymentVerifiedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Payment verified",
			Heading: "Your purchase is confirmed",
		},
		Product: product,
	})
}

func renderPaymentRejected(product, reason string) (string, error) {
	return renderEmailTemplate("payment_rejected.html", paymentRejectedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Payment rejected",
			Heading: "Your payment was rejected",
		},
		Product: product,
		Reason:  reason,
	})
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatCurrencyEUR(amount int) string {
	return fmt.Sprintf("€%d,-", amount)
}
