package notify

import (
	"context"
	"log/slog"
	"testing"

	"stockpay/internal/model"
	"stockpay/internal/service"
)

func TestFormatMoney(t *testing.T) {
	cases := map[string]struct {
		amount   int64
		currency model.Currency
		want     string
	}{
		"whole":     {10000, model.NGN, "NGN 100.00"},
		"with kobo": {10050, model.NGN, "NGN 100.50"},
		"sub-unit":  {5, model.USD, "USD 0.05"},
		"zero":      {0, model.NGN, "NGN 0.00"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := formatMoney(tc.amount, tc.currency); got != tc.want {
				t.Errorf("formatMoney(%d, %s) = %q, want %q", tc.amount, tc.currency, got, tc.want)
			}
		})
	}
}

func TestSend_SkipsWhenUnconfigured(t *testing.T) {
	m := NewMailer("", "", "", slog.New(slog.DiscardHandler))

	err := m.SendPaymentSuccessful(context.Background(), "buyer@example.com", service.PaymentNotification{
		Name:      "Buyer",
		Inventory: "Test Item",
		Price:     10000,
		Currency:  model.NGN,
	})
	if err != nil {
		t.Fatalf("unconfigured mailer must be a no-op, got %v", err)
	}
}
