package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanPeriodEnd(t *testing.T) {
	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	monthly := &Plan{BillingCycle: BillingCycleMonthly}
	assert.Equal(t, start.AddDate(0, 1, 0), monthly.PeriodEnd(start))

	yearly := &Plan{BillingCycle: BillingCycleYearly}
	assert.Equal(t, time.Date(2027, 1, 31, 10, 0, 0, 0, time.UTC), yearly.PeriodEnd(start))

	unknown := &Plan{BillingCycle: ""}
	assert.Equal(t, monthly.PeriodEnd(start), unknown.PeriodEnd(start))
}

func TestSubscriptionOccupiesMonth(t *testing.T) {
	cases := map[string]bool{
		SubscriptionStatusPending:  true,
		SubscriptionStatusActive:   true,
		SubscriptionStatusPastDue:  false,
		SubscriptionStatusCanceled: false,
		SubscriptionStatusExpired:  false,
	}
	for status, want := range cases {
		s := &Subscription{Status: status}
		assert.Equal(t, want, s.OccupiesMonth(), status)
	}
}

func TestPaymentIsTerminal(t *testing.T) {
	assert.False(t, (&Payment{Status: PaymentStatusPending}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusPaid}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusFailed}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusExpired}).IsTerminal())
}

func TestJSONValueAndScan(t *testing.T) {
	j, err := NewJSON(map[string]string{"checkout_session_id": "cs_123"})
	require.NoError(t, err)

	v, err := j.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"checkout_session_id":"cs_123"}`, v.(string))

	var scanned JSON
	require.NoError(t, scanned.Scan([]byte(`{"a":1}`)))
	var out map[string]int
	require.NoError(t, scanned.Decode(&out))
	assert.Equal(t, 1, out["a"])

	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)

	_, err = JSON(`{broken`).Value()
	assert.Error(t, err)

	empty, err := JSON(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, empty)
}
