package billing

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/BillFox/app/repository"
)

// EligibilityService decides whether a company may start a subscription in
// the current billing month.
type EligibilityService struct {
	db       *gorm.DB
	location *time.Location
	now      func() time.Time
}

// NewEligibilityService creates an eligibility service; billing months are
// computed in location.
func NewEligibilityService(db *gorm.DB, location *time.Location) *EligibilityService {
	if location == nil {
		location = time.UTC
	}
	return &EligibilityService{db: db, location: location, now: time.Now}
}

// CurrentBillingMonth returns the first day of the current month as a civil
// date. Year and month follow the configured location; the value itself is
// midnight UTC so it is stored in the DATE column unshifted.
func (e *EligibilityService) CurrentBillingMonth() time.Time {
	n := e.now().In(e.location)
	return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AssertCanSubscribe fails with AlreadySubscribedError or
// UpgradeRequiredError when the company already occupies the current
// billing month. It only reads.
func (e *EligibilityService) AssertCanSubscribe(ctx context.Context, companyID, planID uint) error {
	subs := repository.NewSubscriptionRepository(e.db.WithContext(ctx))
	return e.check(subs, companyID, planID, e.CurrentBillingMonth(), false)
}

func (e *EligibilityService) check(subs repository.SubscriptionRepository, companyID, planID uint, month time.Time, lock bool) error {
	existing, err := subs.FindOccupying(companyID, month, lock)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if existing.PlanID == planID {
		return &AlreadySubscribedError{CompanyID: companyID, PlanID: planID, BillingMonth: month}
	}
	return &UpgradeRequiredError{
		CompanyID:     companyID,
		CurrentPlanID: existing.PlanID,
		RequestedPlan: planID,
		BillingMonth:  month,
	}
}
