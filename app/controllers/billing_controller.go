package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BillFox/app/models"
	"github.com/ManuelReschke/BillFox/app/repository"
	"github.com/ManuelReschke/BillFox/internal/pkg/billing"
)

const billingRequestTimeout = 30 * time.Second

var validate = validator.New()

// BillingService is the part of billing.Service the HTTP layer uses.
type BillingService interface {
	Initiate(ctx context.Context, companyID uint, plan *models.Plan, provider, method string, opts billing.CheckoutOptions) (*billing.InitiateResult, error)
	HandleWebhook(ctx context.Context, provider string, req billing.WebhookRequest) (*billing.WebhookOutcome, error)
}

type BillingController struct {
	service BillingService
	plans   repository.PlanRepository
}

func NewBillingController(service BillingService, plans repository.PlanRepository) *BillingController {
	return &BillingController{service: service, plans: plans}
}

// CheckoutRequest is the body of POST /api/v1/billing/checkout
type CheckoutRequest struct {
	CompanyID  uint   `json:"company_id" validate:"required,gt=0"`
	PlanID     uint   `json:"plan_id" validate:"required,gt=0"`
	Provider   string `json:"provider" validate:"required"`
	Method     string `json:"method" validate:"required"`
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

func (bc *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "invalid_request",
			"fields": invalidFields(err),
		})
	}

	plan, err := bc.plans.GetByID(req.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "plan_not_found"})
		}
		log.Errorf("[Billing] Failed to load plan %d: %v", req.PlanID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), billingRequestTimeout)
	defer cancel()

	res, err := bc.service.Initiate(ctx, req.CompanyID, plan, req.Provider, req.Method, billing.CheckoutOptions{
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		status := billing.HTTPStatus(err)
		body := fiber.Map{"error": billing.ErrorCode(err)}
		if status < fiber.StatusInternalServerError {
			body["message"] = err.Error()
		}
		return c.Status(status).JSON(body)
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// HandleProviderWebhook hands the untouched body to the billing service.
// Error replies carry only a code; signatures are never echoed.
func (bc *BillingController) HandleProviderWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	headers := http.Header{}
	for key, values := range c.GetReqHeaders() {
		for _, v := range values {
			headers.Add(key, v)
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), billingRequestTimeout)
	defer cancel()

	outcome, err := bc.service.HandleWebhook(ctx, c.Params("provider"), billing.WebhookRequest{
		Headers: headers,
		Body:    rawBody,
	})
	if err != nil {
		status := billing.HTTPStatus(err)
		if status >= fiber.StatusInternalServerError {
			log.Errorf("[Billing] Webhook for %s failed: %v", c.Params("provider"), err)
		}
		return c.Status(status).JSON(fiber.Map{"error": billing.ErrorCode(err)})
	}

	resp := fiber.Map{"ok": true}
	if outcome.Duplicate {
		resp["duplicate"] = true
	}
	if outcome.Ignored {
		resp["ignored"] = true
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func HandleHealthz(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

func invalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}
