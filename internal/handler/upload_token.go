package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stayhub/booking-core/internal/repository"
	"github.com/stayhub/booking-core/internal/service"
)

// UploadTokenHandler lets an authenticated guest mint a single-use
// upload token and lets the anonymous second device redeem it.
type UploadTokenHandler struct {
	Broker   *service.UploadBroker
	MaxBytes int
}

func NewUploadTokenHandler(broker *service.UploadBroker, maxBytes int) *UploadTokenHandler {
	if broker == nil {
		panic("nil broker passed to NewUploadTokenHandler")
	}
	return &UploadTokenHandler{Broker: broker, MaxBytes: maxBytes}
}

type issueTokenReq struct {
	RoomID      uint64  `json:"room_id" validate:"required"`
	CheckIn     string  `json:"check_in" validate:"required"`
	CheckOut    string  `json:"check_out" validate:"required"`
	Guests      uint32  `json:"guests" validate:"required,min=1"`
	TotalAmount float64 `json:"total_amount" validate:"required,gt=0"`
}

// Issue handles POST /v1/upload-tokens.  The response carries the raw
// token for the client to encode into a QR code; issuing a new token
// for the same booking attempt invalidates the previous one.
func (h *UploadTokenHandler) Issue(c echo.Context) error {
	guestID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req issueTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	dr, err := parseDates(req.CheckIn, req.CheckOut)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	t, err := h.Broker.Issue(c.Request().Context(), guestID, service.IssueParams{
		RoomID:      req.RoomID,
		Dates:       dr,
		Guests:      req.Guests,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"token":      t.Token,
		"expires_at": t.ExpiresAt,
	})
}

// Upload handles POST /v1/upload-tokens/:token/proof.  No
// authentication: the token itself is the credential.  Expects a
// multipart form with a "file" part containing the proof image.
func (h *UploadTokenHandler) Upload(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read file"})
	}
	defer src.Close()

	// Read one byte past the ceiling so oversized files are detected
	// without buffering them whole.
	data, err := io.ReadAll(io.LimitReader(src, int64(h.MaxBytes)+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read file"})
	}
	if len(data) > h.MaxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": service.ErrProofTooLarge.Error()})
	}

	proofURL, err := h.Broker.Consume(c.Request().Context(), token, fh.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown token"})
		case errors.Is(err, service.ErrTokenExpired):
			return c.JSON(http.StatusGone, echo.Map{"error": err.Error(), "expired": true})
		case errors.Is(err, service.ErrTokenUsed):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrProofTooLarge):
			return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrNotAnImage):
			return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"proof_url": proofURL})
}

// Status handles GET /v1/upload-tokens/:token, polled by the
// initiating device while it waits for the second device to upload.
// Anonymous like the upload itself: the token is unguessable and the
// response exposes nothing beyond the upload outcome.
func (h *UploadTokenHandler) Status(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	st, err := h.Broker.Status(c.Request().Context(), token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "status lookup failed"})
	}
	return c.JSON(http.StatusOK, st)
}
