package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockpay/internal/model"
	"stockpay/internal/service"
)

// Mailer sends transactional mail through the Mailgun messages API. It is a
// best-effort side channel: callers log failures and never let them affect
// committed state. With no API key configured, sends are logged and skipped.
type Mailer struct {
	apiKey string
	domain string
	from   string
	http   *http.Client
	log    *slog.Logger
}

func NewMailer(apiKey, domain, from string, log *slog.Logger) *Mailer {
	return &Mailer{
		apiKey: apiKey,
		domain: domain,
		from:   from,
		http:   &http.Client{Timeout: 10 * time.Second},
		log:    log.With("service", "mailer"),
	}
}

func (m *Mailer) SendPaymentSuccessful(ctx context.Context, email string, p service.PaymentNotification) error {
	html := fmt.Sprintf(
		"Dear %s,<br/><br/>Your payment was successful.<br/><br/>Inventory: %s<br/>Price: %s",
		p.Name, p.Inventory, formatMoney(p.Price, p.Currency),
	)
	return m.send(ctx, email, "Payment successful", html)
}

func (m *Mailer) send(ctx context.Context, to, subject, html string) error {
	if m.apiKey == "" {
		m.log.Info("mailer not configured, skipping send", "to", to, "subject", subject)
		return nil
	}

	form := url.Values{}
	form.Set("from", m.from)
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("html", html)

	endpoint := fmt.Sprintf("https://api.mailgun.net/v3/%s/messages", m.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.SetBasicAuth("api", m.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("send mail: mailgun returned %d", res.StatusCode)
	}

	m.log.Info("mail sent", "to", to, "subject", subject)
	return nil
}

// formatMoney renders a minor-unit amount with its currency code,
// e.g. 10000 NGN -> "NGN 100.00".
func formatMoney(amount int64, currency model.Currency) string {
	return fmt.Sprintf("%s %d.%02d", currency, amount/100, amount%100)
}
