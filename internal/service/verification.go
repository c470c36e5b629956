package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stayhub/booking-core/internal/model"
	"github.com/stayhub/booking-core/internal/queue"
	"github.com/stayhub/booking-core/internal/repository"
	"github.com/stayhub/booking-core/internal/verifier"
)

// SlipStore is the persistence contract for the verified-slip ledger.
type SlipStore interface {
	Insert(ctx context.Context, s *model.VerifiedSlip) error
	AttachExternal(ctx context.Context, fingerprint, externalRef, rawPayload string) error
}

// Fingerprint derives the stable reuse-detection hash for a payment
// proof from its canonical reference.  The same proof submitted for
// any booking always maps to the same fingerprint.
func Fingerprint(proofRef string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(proofRef)))
	return hex.EncodeToString(sum[:])
}

// Pipeline implements the two-phase payment verification flow.
//
// Phase 1 is synchronous and local: fingerprint the proof, reject
// reuse via the ledger's unique constraint, confirm the booking,
// release its lock, notify, and return; the guest never waits on the
// external verifier.
//
// Phase 2 runs in the background after the response is sent.  It
// defers to the external verifier and either leaves the confirmed
// booking alone, or cancels it with a system reason and raises a
// fraud alert.  Transient verifier failures fail open: the booking
// stays confirmed and the run ends without a verdict.
type Pipeline struct {
	slips     SlipStore
	lifecycle *Lifecycle
	locks     *LockManager
	verify    verifier.Verifier // nil when no verifier integration is configured
	notify    Notifier
	clock     Clock
	amountTol float64
	recency   time.Duration
	log       *logrus.Logger
	launch    func(func()) // background launcher, replaceable in tests
}

// NewPipeline wires the pipeline.  verify may be nil when the tenant
// has no external verification integration; phase 2 is then a no-op.
func NewPipeline(slips SlipStore, lifecycle *Lifecycle, locks *LockManager, verify verifier.Verifier,
	notify Notifier, clock Clock, amountTol float64, recency time.Duration, log *logrus.Logger) *Pipeline {
	if slips == nil || lifecycle == nil || locks == nil || notify == nil || clock == nil || log == nil {
		panic("nil dependency passed to NewPipeline")
	}
	return &Pipeline{
		slips:     slips,
		lifecycle: lifecycle,
		locks:     locks,
		verify:    verify,
		notify:    notify,
		clock:     clock,
		amountTol: amountTol,
		recency:   recency,
		log:       log,
		launch:    func(fn func()) { go fn() },
	}
}

// SubmitProof is phase 1.  It returns quickly with the confirmed
// booking or a business conflict; the external verifier is never on
// this path.
func (p *Pipeline) SubmitProof(ctx context.Context, bookingID, guestID uint64, proofRef string, claimedAmount float64) (*model.Booking, error) {
	b, err := p.lifecycle.Get(ctx, bookingID, guestID)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}

	fp := Fingerprint(proofRef)
	if err := p.slips.Insert(ctx, &model.VerifiedSlip{
		Fingerprint: fp,
		BookingID:   bookingID,
		Amount:      claimedAmount,
	}); err != nil {
		// ErrDuplicateSlip passes through: the caller must be able to
		// tell "this proof was already used" from an infrastructure
		// failure.
		return nil, err
	}

	if err := p.lifecycle.SetProofURL(ctx, bookingID, proofRef); err != nil {
		p.log.WithError(err).WithField("booking_id", bookingID).Warn("failed to record proof url")
	}
	b, _, err = p.lifecycle.Confirm(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := p.locks.Release(ctx, b.RoomID, b.GuestID, b.Dates); err != nil {
		p.log.WithError(err).WithField("booking_id", bookingID).Warn("failed to release lock after confirmation")
	}

	p.launch(func() {
		// The request context is gone by the time this runs; the
		// background phase gets its own deadline and error handling.
		bg, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := p.VerifyProof(bg, bookingID, fp, proofRef, claimedAmount); err != nil {
			p.log.WithError(err).WithField("booking_id", bookingID).Error("background verification failed")
		}
	})
	return b, nil
}

// VerifyProof is phase 2.  It is safe to run more than once for the
// same submission: every state change it makes goes through the
// lifecycle's idempotent-confirm / any-time-cancel rules, so a
// duplicated background run cannot corrupt state.
func (p *Pipeline) VerifyProof(ctx context.Context, bookingID uint64, fingerprint, proofRef string, claimedAmount float64) error {
	if p.verify == nil {
		return nil
	}
	res, err := p.verify.Verify(ctx, proofRef, claimedAmount)
	if err != nil {
		// Fail open: the booking stays confirmed on a transient
		// verifier failure.
		p.log.WithError(err).WithField("booking_id", bookingID).Warn("verifier unreachable, keeping booking confirmed")
		return nil
	}

	if err := p.slips.AttachExternal(ctx, fingerprint, res.ExternalRef, res.Raw); err != nil {
		if err == repository.ErrDuplicateSlip {
			// The transaction reference already backs another slip:
			// the same payment is being reused under a different image.
			p.resolveFraud(ctx, bookingID, fingerprint, "fraud",
				"payment transaction was already used for another booking", claimedAmount, res.Amount)
			return nil
		}
		return err
	}

	classification, reason := p.classify(res, claimedAmount)
	if classification == "" {
		return nil // verified, amount matches; already confirmed
	}
	p.resolveFraud(ctx, bookingID, fingerprint, classification, reason, claimedAmount, res.Amount)
	return nil
}

// classify maps a verifier result to ("", ""), ("fraud", reason) or
// ("amount_mismatch", reason).
func (p *Pipeline) classify(res *verifier.Result, claimedAmount float64) (string, string) {
	if !res.Valid {
		reason := res.Reason
		if reason == "" {
			reason = "not recognised as a payment proof"
		}
		return "fraud", "payment proof rejected: " + reason
	}
	if !res.PaidAt.IsZero() && p.clock().Sub(res.PaidAt) > p.recency {
		return "fraud", fmt.Sprintf("payment is older than %s", p.recency)
	}
	if math.Abs(res.Amount-claimedAmount) > p.amountTol {
		return "amount_mismatch", fmt.Sprintf("amount mismatch: expected %.2f, got %.2f", claimedAmount, res.Amount)
	}
	return "", ""
}

// resolveFraud cancels the booking with a system reason and raises a
// single fraud alert.  The alert fires only when the cancel actually
// transitioned the booking, so retried background runs cannot alert
// twice.
func (p *Pipeline) resolveFraud(ctx context.Context, bookingID uint64, fingerprint, classification, reason string, claimed, verified float64) {
	changed, err := p.lifecycle.CancelBySystem(ctx, bookingID, reason)
	if err != nil {
		p.log.WithError(err).WithField("booking_id", bookingID).Error("failed to cancel booking after fraud determination")
		return
	}
	if !changed {
		return
	}
	var tenantID uint64
	if b, err := p.lifecycle.bookings.GetByID(ctx, bookingID); err == nil {
		tenantID = b.TenantID
	}
	p.log.WithFields(logrus.Fields{
		"booking_id":     bookingID,
		"classification": classification,
		"reason":         reason,
	}).Warn("booking auto-cancelled after verification")
	p.notify.FraudAlert(ctx, queue.FraudAlertEvent{
		BookingID:      bookingID,
		TenantID:       tenantID,
		Fingerprint:    fingerprint,
		Classification: classification,
		Reason:         reason,
		ClaimedAmount:  claimed,
		VerifiedAmount: verified,
		DetectedAt:     p.clock().Format(time.RFC3339),
	})
}
