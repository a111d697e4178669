package billing

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/BillFox/app/models"
	"github.com/ManuelReschke/BillFox/internal/pkg/testutil"
)

var (
	manila   = time.FixedZone("PHT", 8*60*60)
	fixedNow = time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	octMonth = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	planBasic = &models.Plan{ID: 1, Name: "Basic", Price: decimal.RequireFromString("999.00"), BillingCycle: models.BillingCycleMonthly}
	planPro   = &models.Plan{ID: 2, Name: "Pro", Price: decimal.RequireFromString("2499.00"), BillingCycle: models.BillingCycleMonthly}
)

const (
	selectOccupyingLocked = "SELECT \\* FROM `subscriptions` WHERE .*status IN .*FOR UPDATE"
	selectOccupying       = "SELECT \\* FROM `subscriptions` WHERE .*status IN"
	insertSubscription    = "INSERT INTO `subscriptions`"
	insertPayment         = "INSERT INTO `payments`"
	updatePaymentCheckout = "UPDATE `payments` SET .*`checkout_url`=\\?"
)

func subscriptionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "plan_id", "status", "billing_month"})
}

func newTestService(t *testing.T, cfg PayMongoConfig, opts ...ServiceOption) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := testutil.NewMockDB(t)
	reg := NewRegistry(GatewayConfig{PayMongo: cfg}, DefaultGatewayFactories())
	opts = append([]ServiceOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(db, reg, Settings{Currency: "PHP", Location: manila}, opts...), mock
}

func TestCurrentBillingMonthUsesLocation(t *testing.T) {
	db, _ := testutil.NewMockDB(t)
	e := NewEligibilityService(db, manila)
	e.now = func() time.Time { return time.Date(2026, 10, 31, 17, 30, 0, 0, time.UTC) }

	// 01:30 on Nov 1st in Manila
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), e.CurrentBillingMonth())

	// 00:30 on Oct 1st in Manila, still September in UTC
	e.now = func() time.Time { return time.Date(2026, 9, 30, 16, 30, 0, 0, time.UTC) }
	assert.Equal(t, octMonth, e.CurrentBillingMonth())

	e.now = func() time.Time { return fixedNow }
	month := e.CurrentBillingMonth()
	assert.Equal(t, time.UTC, month.Location())
	assert.Equal(t, "2026-10-01", month.Format("2006-01-02"))
}

func TestAssertCanSubscribe(t *testing.T) {
	svc, mock := newTestService(t, testGatewayConfig().PayMongo)
	ctx := context.Background()

	mock.ExpectQuery(selectOccupying).WillReturnRows(subscriptionRows())
	assert.NoError(t, svc.Eligibility().AssertCanSubscribe(ctx, 7, planBasic.ID))

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(selectOccupying).WillReturnRows(subscriptionRows().
			AddRow(11, 7, planBasic.ID, models.SubscriptionStatusPending, octMonth))
		err := svc.Eligibility().AssertCanSubscribe(ctx, 7, planBasic.ID)

		var already *AlreadySubscribedError
		require.True(t, errors.As(err, &already), "call %d", i)
		assert.True(t, octMonth.Equal(already.BillingMonth))
	}

	mock.ExpectQuery(selectOccupying).WillReturnRows(subscriptionRows().
		AddRow(11, 7, planBasic.ID, models.SubscriptionStatusActive, octMonth))
	err := svc.Eligibility().AssertCanSubscribe(ctx, 7, planPro.ID)

	var upgrade *UpgradeRequiredError
	require.True(t, errors.As(err, &upgrade))
	assert.Equal(t, planBasic.ID, upgrade.CurrentPlanID)
	assert.Equal(t, planPro.ID, upgrade.RequestedPlan)
}

func TestInitiateCreatesPendingCheckout(t *testing.T) {
	cfg := newTestPayMongo(t, checkoutSessionHandler(t, nil))
	svc, mock := newTestService(t, cfg)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows())
	mock.ExpectExec(insertSubscription).WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec(insertPayment).WillReturnResult(sqlmock.NewResult(20, 1))
	mock.ExpectExec(updatePaymentCheckout).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Initiate(context.Background(), 7, planBasic, "paymongo", "gcash", CheckoutOptions{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.CheckoutURL, "https://checkout.paymongo.com/"))
	assert.Equal(t, uint(10), res.Subscription.ID)
	assert.Equal(t, models.SubscriptionStatusPending, res.Subscription.Status)
	assert.True(t, octMonth.Equal(res.Subscription.BillingMonth))
	assert.Equal(t, fixedNow.AddDate(0, 1, 0), res.Subscription.EndsAt)

	assert.Equal(t, uint(20), res.Payment.ID)
	assert.Equal(t, models.PaymentStatusPending, res.Payment.Status)
	assert.Equal(t, "PHP", res.Payment.Currency)
	assert.Equal(t, "gcash", res.Payment.Method)
	assert.True(t, planBasic.Price.Equal(res.Payment.Amount))
	require.NotNil(t, res.Payment.ProviderReferenceID)
	assert.Equal(t, "cs_test_1", *res.Payment.ProviderReferenceID)
	assert.Len(t, res.Payment.ReferenceNumber, 36)
	assert.Equal(t, "Basic subscription (October 2026)", res.Payment.Description)
}

func TestInitiateRejectsOccupiedMonth(t *testing.T) {
	var calls int32
	cfg := newTestPayMongo(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	svc, mock := newTestService(t, cfg)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows().
		AddRow(11, 7, planBasic.ID, models.SubscriptionStatusPending, octMonth))
	mock.ExpectRollback()

	_, err := svc.Initiate(ctx, 7, planBasic, "paymongo", "gcash", CheckoutOptions{})
	var already *AlreadySubscribedError
	assert.True(t, errors.As(err, &already))

	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows().
		AddRow(11, 7, planBasic.ID, models.SubscriptionStatusPending, octMonth))
	mock.ExpectRollback()

	_, err = svc.Initiate(ctx, 7, planPro, "paymongo", "gcash", CheckoutOptions{})
	var upgrade *UpgradeRequiredError
	assert.True(t, errors.As(err, &upgrade))

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestInitiateRollsBackOnGatewayFailure(t *testing.T) {
	cfg := newTestPayMongo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"errors":[{"code":"service_unavailable"}]}`)
	})
	svc, mock := newTestService(t, cfg)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows())
	mock.ExpectExec(insertSubscription).WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec(insertPayment).WillReturnResult(sqlmock.NewResult(20, 1))
	mock.ExpectRollback()

	res, err := svc.Initiate(context.Background(), 7, planBasic, "paymongo", "card", CheckoutOptions{})
	assert.Nil(t, res)

	var reqErr *GatewayRequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadGateway, reqErr.StatusCode)
	assert.Contains(t, reqErr.Body, "service_unavailable")
}

func TestInitiateMapsDuplicateKeyToAlreadySubscribed(t *testing.T) {
	svc, mock := newTestService(t, testGatewayConfig().PayMongo)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows())
	mock.ExpectExec(insertSubscription).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := svc.Initiate(context.Background(), 7, planBasic, "paymongo", "card", CheckoutOptions{})

	var already *AlreadySubscribedError
	assert.True(t, errors.As(err, &already))
}

// billingMonthArg matches the civil date 2026-10-01 as sent to a DATE column
// over a loc=UTC connection.
type billingMonthArg struct{}

func (billingMonthArg) Match(v driver.Value) bool {
	ts, ok := v.(time.Time)
	return ok && ts.Equal(octMonth) && ts.UTC().Format("2006-01-02") == "2026-10-01"
}

func TestInitiateStoresBillingMonthAsCivilDate(t *testing.T) {
	cfg := newTestPayMongo(t, checkoutSessionHandler(t, nil))
	svc, mock := newTestService(t, cfg)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows())
	mock.ExpectExec(insertSubscription).
		WithArgs(7, planBasic.ID, models.SubscriptionStatusPending, billingMonthArg{},
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec(insertPayment).WillReturnResult(sqlmock.NewResult(20, 1))
	mock.ExpectExec(updatePaymentCheckout).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := svc.Initiate(context.Background(), 7, planBasic, "paymongo", "card", CheckoutOptions{})
	require.NoError(t, err)
}

func TestInitiateRetriesAfterLockConflict(t *testing.T) {
	var calls int32
	cfg := newTestPayMongo(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	svc, mock := newTestService(t, cfg)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows())
	mock.ExpectExec(insertSubscription).
		WillReturnError(&mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows().
		AddRow(11, 7, planBasic.ID, models.SubscriptionStatusPending, octMonth))
	mock.ExpectRollback()

	_, err := svc.Initiate(context.Background(), 7, planPro, "paymongo", "gcash", CheckoutOptions{})

	var upgrade *UpgradeRequiredError
	require.True(t, errors.As(err, &upgrade))
	assert.Equal(t, planBasic.ID, upgrade.CurrentPlanID)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestInitiateReportsPersistentLockConflictAsAlreadySubscribed(t *testing.T) {
	svc, mock := newTestService(t, testGatewayConfig().PayMongo)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows())
	mock.ExpectExec(insertSubscription).
		WillReturnError(&mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).
		WillReturnError(&mysqldriver.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	mock.ExpectRollback()

	_, err := svc.Initiate(context.Background(), 7, planBasic, "paymongo", "card", CheckoutOptions{})

	var already *AlreadySubscribedError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, octMonth, already.BillingMonth)
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))
}

func TestInitiateRejectsBadArguments(t *testing.T) {
	svc, _ := newTestService(t, testGatewayConfig().PayMongo)
	ctx := context.Background()

	tests := []struct {
		name      string
		companyID uint
		plan      *models.Plan
		provider  string
		method    string
		opts      CheckoutOptions
	}{
		{name: "unknown provider", companyID: 7, plan: planBasic, provider: "stripe", method: "card"},
		{name: "unknown method", companyID: 7, plan: planBasic, provider: "paymongo", method: "bitcoin"},
		{name: "no company", companyID: 0, plan: planBasic, provider: "paymongo", method: "card"},
		{name: "no plan", companyID: 7, plan: nil, provider: "paymongo", method: "card"},
		{name: "bad redirect", companyID: 7, plan: planBasic, provider: "paymongo", method: "card", opts: CheckoutOptions{SuccessURL: "::"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Initiate(ctx, tt.companyID, tt.plan, tt.provider, tt.method, tt.opts)

			var invalid *InvalidArgumentError
			assert.True(t, errors.As(err, &invalid))
		})
	}
}

func TestInitiateUnregisteredMethodTouchesNoRows(t *testing.T) {
	svc, _ := newTestService(t, testGatewayConfig().PayMongo)

	_, err := svc.Initiate(context.Background(), 7, planBasic, "paymongo", "paymaya", CheckoutOptions{})

	var unknown *UnknownGatewayError
	assert.True(t, errors.As(err, &unknown))
}

func TestInitiateUsesNewlyRegisteredGateway(t *testing.T) {
	svc, mock := newTestService(t, testGatewayConfig().PayMongo)
	stub := &stubGateway{checkout: &CheckoutResponse{
		CheckoutURL: "https://checkout.paymongo.com/cs_grab",
		ReferenceID: "cs_grab",
	}}
	svc.registry.Register(NewGatewayKey(ProviderPayMongo, MethodGrabPay), func(GatewayConfig) (Gateway, error) {
		return stub, nil
	})

	mock.ExpectBegin()
	mock.ExpectQuery(selectOccupyingLocked).WillReturnRows(subscriptionRows())
	mock.ExpectExec(insertSubscription).WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec(insertPayment).WillReturnResult(sqlmock.NewResult(20, 1))
	mock.ExpectExec(updatePaymentCheckout).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Initiate(context.Background(), 7, planBasic, "paymongo", "grab_pay", CheckoutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paymongo.com/cs_grab", res.CheckoutURL)
	assert.Equal(t, 1, stub.calls)
}
