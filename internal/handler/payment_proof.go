package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stayhub/booking-core/internal/repository"
	"github.com/stayhub/booking-core/internal/service"
)

// PaymentProofHandler accepts payment proof submissions for pending
// bookings and hands them to the verification pipeline.
type PaymentProofHandler struct {
	Pipeline *service.Pipeline
}

func NewPaymentProofHandler(p *service.Pipeline) *PaymentProofHandler {
	if p == nil {
		panic("nil pipeline passed to NewPaymentProofHandler")
	}
	return &PaymentProofHandler{Pipeline: p}
}

type submitProofReq struct {
	BookingID uint64  `json:"booking_id" validate:"required"`
	ProofRef  string  `json:"proof_ref" validate:"required"`
	Amount    float64 `json:"claimed_amount" validate:"required,gt=0"`
	TenantID  uint64  `json:"tenant_id"` // accepted for client symmetry; the booking is authoritative
}

// Submit handles POST /v1/payment-proofs.  The booking is confirmed
// immediately when the proof is accepted; background verification may
// still revoke it later.  A proof that was already used for any
// booking is rejected with 409.
func (h *PaymentProofHandler) Submit(c echo.Context) error {
	guestID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req submitProofReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b, err := h.Pipeline.SubmitProof(c.Request().Context(), req.BookingID, guestID, req.ProofRef, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrDuplicateSlip):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrAlreadyTerminal):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "proof submission failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"accepted":   true,
		"booking_id": b.ID,
		"status":     b.Status,
	})
}
