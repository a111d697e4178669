package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BillFox/app/models"
	"github.com/ManuelReschke/BillFox/app/repository"
	"github.com/ManuelReschke/BillFox/internal/pkg/jobqueue"
)

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// maxInitiateAttempts bounds the retries of a checkout transaction that lost
// the billing month lock to a concurrent one.
const maxInitiateAttempts = 2

var errMonthContended = errors.New("billing month is locked by a concurrent checkout")

// JobDispatcher publishes side-effect jobs for external workers.
type JobDispatcher interface {
	Enqueue(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// Service runs the subscription checkout lifecycle.
type Service struct {
	db          *gorm.DB
	registry    *Registry
	eligibility *EligibilityService
	currency    string
	jobs        JobDispatcher
	metrics     *Metrics
	now         func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithJobDispatcher publishes activation and failure jobs through d.
func WithJobDispatcher(d JobDispatcher) ServiceOption {
	return func(s *Service) { s.jobs = d }
}

// WithMetrics records checkout and webhook counters.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now for the service and its eligibility checks.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
		s.eligibility.now = now
	}
}

// NewService creates the billing service.
func NewService(db *gorm.DB, registry *Registry, settings Settings, opts ...ServiceOption) *Service {
	s := &Service{
		db:          db,
		registry:    registry,
		eligibility: NewEligibilityService(db, settings.Location),
		currency:    settings.Currency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Eligibility exposes the eligibility service sharing this service's clock.
func (s *Service) Eligibility() *EligibilityService {
	return s.eligibility
}

// Initiate creates a pending subscription and payment for the company and
// opens a provider checkout for it. Everything happens in one transaction:
// when the gateway fails, no rows remain.
func (s *Service) Initiate(ctx context.Context, companyID uint, plan *models.Plan, provider, method string, opts CheckoutOptions) (*InitiateResult, error) {
	p, err := ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	if companyID == 0 {
		return nil, &InvalidArgumentError{Field: "company_id", Value: "0"}
	}
	if plan == nil || plan.ID == 0 {
		return nil, &InvalidArgumentError{Field: "plan", Value: "<nil>"}
	}
	if err := validate.Struct(opts); err != nil {
		return nil, &InvalidArgumentError{Field: "checkout options", Value: opts.SuccessURL + " " + opts.CancelURL}
	}

	gateway, err := s.registry.Resolve(p, m)
	if err != nil {
		s.metrics.observeCheckout(p, m, ErrorCode(err))
		return nil, err
	}

	month := s.eligibility.CurrentBillingMonth()
	now := s.now()

	var result *InitiateResult
	for attempt := 1; ; attempt++ {
		result, err = s.initiateOnce(ctx, gateway, companyID, plan, p, m, month, now, opts)
		if !errors.Is(err, errMonthContended) {
			break
		}
		if attempt == maxInitiateAttempts {
			err = &AlreadySubscribedError{CompanyID: companyID, PlanID: plan.ID, BillingMonth: month}
			break
		}
		log.Warnf("[Billing] Lock conflict on %s for company %d, retrying: %v", month.Format("2006-01"), companyID, err)
	}
	if err != nil {
		s.metrics.observeCheckout(p, m, ErrorCode(err))
		log.Warnf("[Billing] Checkout for company %d plan %d via %s failed: %v", companyID, plan.ID, NewGatewayKey(p, m), err)
		return nil, err
	}

	s.metrics.observeCheckout(p, m, "created")
	log.Infof("[Billing] Checkout %s created for company %d (subscription %d, payment %d)",
		*result.Payment.ProviderReferenceID, companyID, result.Subscription.ID, result.Payment.ID)
	return result, nil
}

// initiateOnce runs one checkout transaction. Lock conflicts while claiming
// the billing month are reported as errMonthContended; the gateway has not
// been called at that point.
func (s *Service) initiateOnce(ctx context.Context, gateway Gateway, companyID uint, plan *models.Plan, p Provider, m Method, month, now time.Time, opts CheckoutOptions) (*InitiateResult, error) {
	var result *InitiateResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		if err := s.eligibility.check(repos.Subscription, companyID, plan.ID, month, true); err != nil {
			if isLockConflict(err) {
				return fmt.Errorf("%w: %v", errMonthContended, err)
			}
			return err
		}

		sub := &models.Subscription{
			CompanyID:    companyID,
			PlanID:       plan.ID,
			Status:       models.SubscriptionStatusPending,
			BillingMonth: month,
			StartsAt:     now,
			EndsAt:       plan.PeriodEnd(now),
		}
		if err := repos.Subscription.Create(sub); err != nil {
			if isDuplicateKeyError(err) {
				return &AlreadySubscribedError{CompanyID: companyID, PlanID: plan.ID, BillingMonth: month}
			}
			if isLockConflict(err) {
				return fmt.Errorf("%w: %v", errMonthContended, err)
			}
			return err
		}

		payment := &models.Payment{
			SubscriptionID:  sub.ID,
			CompanyID:       companyID,
			Provider:        string(p),
			Method:          string(m),
			Amount:          plan.Price,
			Currency:        s.currency,
			Status:          models.PaymentStatusPending,
			Description:     fmt.Sprintf("%s subscription (%s)", plan.Name, month.Format("January 2006")),
			ReferenceNumber: uuid.NewString(),
		}
		if err := repos.Payment.Create(payment); err != nil {
			return err
		}

		checkout, err := gateway.CreateCheckout(ctx, payment, opts)
		if err != nil {
			return err
		}

		metadata, err := models.NewJSON(checkout.Metadata)
		if err != nil {
			return err
		}
		if err := repos.Payment.SaveCheckout(payment.ID, checkout.ReferenceID, checkout.CheckoutURL, metadata); err != nil {
			return err
		}
		ref := checkout.ReferenceID
		payment.ProviderReferenceID = &ref
		payment.CheckoutURL = checkout.CheckoutURL
		payment.Metadata = metadata

		result = &InitiateResult{
			Subscription: sub,
			Payment:      payment,
			CheckoutURL:  checkout.CheckoutURL,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}

func isLockConflict(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	return mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
}
