package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
	}{
		{amount: "999.00", currency: "PHP", want: 99900},
		{amount: "1499.5", currency: "php", want: 149950},
		{amount: "0.01", currency: "PHP", want: 1},
		{amount: "10.005", currency: "USD", want: 1001},
		{amount: "1200", currency: "JPY", want: 1200},
	}

	for _, tt := range tests {
		got, err := toMinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
		if err != nil {
			t.Fatalf("toMinorUnits(%s, %s) unexpected error: %v", tt.amount, tt.currency, err)
		}
		if got != tt.want {
			t.Fatalf("toMinorUnits(%s, %s) = %d, want %d", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestToMinorUnitsRejectsNonPositive(t *testing.T) {
	for _, amount := range []string{"0", "-5.00"} {
		if _, err := toMinorUnits(decimal.RequireFromString(amount), "PHP"); err == nil {
			t.Fatalf("expected %s to be rejected", amount)
		}
	}
}

func TestFlexibleTime(t *testing.T) {
	want := time.Unix(1760500000, 0).UTC()
	tests := []struct {
		in   string
		want *time.Time
	}{
		{in: `1760500000`, want: &want},
		{in: `"1760500000"`, want: &want},
		{in: `"` + want.Format(time.RFC3339) + `"`, want: &want},
		{in: `null`, want: nil},
		{in: `""`, want: nil},
	}

	for _, tt := range tests {
		var ft flexibleTime
		if err := json.Unmarshal([]byte(tt.in), &ft); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		switch {
		case tt.want == nil && ft.Time != nil:
			t.Fatalf("unmarshal %s: expected nil, got %v", tt.in, ft.Time)
		case tt.want != nil && (ft.Time == nil || !ft.Time.Equal(*tt.want)):
			t.Fatalf("unmarshal %s: got %v, want %v", tt.in, ft.Time, tt.want)
		}
	}

	var ft flexibleTime
	if err := json.Unmarshal([]byte(`"yesterday"`), &ft); err == nil {
		t.Fatalf("expected unsupported timestamp to fail")
	}
}

func TestPaymentIntentRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `"pi_123"`, want: "pi_123"},
		{in: `{"id":"pi_456","type":"payment_intent"}`, want: "pi_456"},
		{in: `null`, want: ""},
		{in: ``, want: ""},
		{in: `42`, want: ""},
	}

	for _, tt := range tests {
		if got := paymentIntentRef(json.RawMessage(tt.in)); got != tt.want {
			t.Fatalf("paymentIntentRef(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
