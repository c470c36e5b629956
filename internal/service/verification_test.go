package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayhub/booking-core/internal/model"
	"github.com/stayhub/booking-core/internal/repository"
	"github.com/stayhub/booking-core/internal/verifier"
)

type pipelineFixture struct {
	*lifecycleFixture
	slips *fakeSlipStore
	vf    *fakeVerifier
	p     *Pipeline
}

func newPipelineFixture(t *testing.T, vf *fakeVerifier) *pipelineFixture {
	t.Helper()
	lf := newLifecycleFixture(t, false, 0)
	slips := newFakeSlipStore()
	var v verifier.Verifier
	if vf != nil {
		v = vf
	}
	p := NewPipeline(slips, lf.lc, lf.lc.locks, v, lf.notify, fixedClock(lf.now),
		1.0, 24*time.Hour, quietLogger())
	p.launch = func(fn func()) { fn() } // run phase 2 inline for determinism
	return &pipelineFixture{lifecycleFixture: lf, slips: slips, vf: vf, p: p}
}

func (f *pipelineFixture) pendingBooking(t *testing.T) *model.Booking {
	t.Helper()
	b, err := f.lc.Create(context.Background(), CreateParams{
		RoomID: 1, GuestID: 100, Dates: mustRange("2025-06-10", "2025-06-13"), Guests: 2,
	})
	require.NoError(t, err)
	return b
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("https://cdn.example.com/slips/abc.jpg")
	b := Fingerprint("  https://cdn.example.com/slips/abc.jpg  ")
	c := Fingerprint("https://cdn.example.com/slips/other.jpg")

	assert.Equal(t, a, b, "surrounding whitespace must not change the fingerprint")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestSubmitProof(t *testing.T) {
	ctx := context.Background()

	t.Run("ConfirmsImmediately", func(t *testing.T) {
		f := newPipelineFixture(t, nil) // no verifier configured
		b := f.pendingBooking(t)

		got, err := f.p.SubmitProof(ctx, b.ID, 100, "slip-1", b.TotalAmount)
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, got.Status)
		assert.Len(t, f.notify.confirmed, 1)
		assert.Empty(t, f.notify.fraud)
	})

	t.Run("DuplicateProofRejected", func(t *testing.T) {
		f := newPipelineFixture(t, nil)
		b1 := f.pendingBooking(t)
		b2, err := f.lc.Create(ctx, CreateParams{
			RoomID: 1, GuestID: 200, Dates: mustRange("2025-07-01", "2025-07-04"), Guests: 2,
		})
		require.NoError(t, err)

		_, err = f.p.SubmitProof(ctx, b1.ID, 100, "same-slip", b1.TotalAmount)
		require.NoError(t, err)

		_, err = f.p.SubmitProof(ctx, b2.ID, 200, "same-slip", b2.TotalAmount)
		assert.ErrorIs(t, err, repository.ErrDuplicateSlip)

		// The second booking stays pending and untouched.
		got, err := f.bookings.GetByID(ctx, b2.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingPending, got.Status)
	})

	t.Run("NotOwner", func(t *testing.T) {
		f := newPipelineFixture(t, nil)
		b := f.pendingBooking(t)
		_, err := f.p.SubmitProof(ctx, b.ID, 999, "slip-2", b.TotalAmount)
		assert.ErrorIs(t, err, repository.ErrForbidden)
	})

	t.Run("TerminalBooking", func(t *testing.T) {
		f := newPipelineFixture(t, nil)
		b := f.pendingBooking(t)
		_, err := f.lc.CancelByGuest(ctx, b.ID, 100, "changed my mind")
		require.NoError(t, err)

		_, err = f.p.SubmitProof(ctx, b.ID, 100, "slip-3", b.TotalAmount)
		assert.ErrorIs(t, err, ErrAlreadyTerminal)
	})

	t.Run("RecordsProofURL", func(t *testing.T) {
		f := newPipelineFixture(t, nil)
		b := f.pendingBooking(t)
		_, err := f.p.SubmitProof(ctx, b.ID, 100, "https://cdn/slip.jpg", b.TotalAmount)
		require.NoError(t, err)

		got, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ProofURL)
		assert.Equal(t, "https://cdn/slip.jpg", *got.ProofURL)
	})
}

func TestBackgroundVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidProofKeepsBooking", func(t *testing.T) {
		f := newPipelineFixture(t, &fakeVerifier{res: &verifier.Result{
			Valid: true, Amount: 390, ExternalRef: "TXN-1",
		}})
		b := f.pendingBooking(t)
		got, err := f.p.SubmitProof(ctx, b.ID, 100, "slip", 390)
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, got.Status)

		final, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, final.Status)
		assert.Empty(t, f.notify.fraud)
	})

	t.Run("InvalidProofCancelsWithFraudAlert", func(t *testing.T) {
		f := newPipelineFixture(t, &fakeVerifier{res: &verifier.Result{
			Valid: false, Reason: "not a payment document",
		}})
		b := f.pendingBooking(t)
		_, err := f.p.SubmitProof(ctx, b.ID, 100, "slip", 360)
		require.NoError(t, err, "phase 1 still succeeds; revocation is asynchronous")

		final, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, final.Status)
		require.Len(t, f.notify.fraud, 1)
		assert.Equal(t, "fraud", f.notify.fraud[0].Classification)
		assert.Equal(t, uint64(10), f.notify.fraud[0].TenantID)
	})

	t.Run("AmountMismatchCancels", func(t *testing.T) {
		f := newPipelineFixture(t, &fakeVerifier{res: &verifier.Result{
			Valid: true, Amount: 100, ExternalRef: "TXN-2",
		}})
		b := f.pendingBooking(t)
		_, err := f.p.SubmitProof(ctx, b.ID, 100, "slip", 360)
		require.NoError(t, err)

		final, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, final.Status)
		require.Len(t, f.notify.fraud, 1)
		assert.Equal(t, "amount_mismatch", f.notify.fraud[0].Classification)
		assert.Equal(t, 360.0, f.notify.fraud[0].ClaimedAmount)
		assert.Equal(t, 100.0, f.notify.fraud[0].VerifiedAmount)
	})

	t.Run("AmountWithinToleranceKeepsBooking", func(t *testing.T) {
		f := newPipelineFixture(t, &fakeVerifier{res: &verifier.Result{
			Valid: true, Amount: 359.5, ExternalRef: "TXN-3",
		}})
		b := f.pendingBooking(t)
		_, err := f.p.SubmitProof(ctx, b.ID, 100, "slip", 360)
		require.NoError(t, err)

		final, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, final.Status)
	})

	t.Run("StalePaymentCancels", func(t *testing.T) {
		f := newPipelineFixture(t, nil)
		stale := &fakeVerifier{res: &verifier.Result{
			Valid: true, Amount: 360, ExternalRef: "TXN-4", PaidAt: f.now.Add(-25 * time.Hour),
		}}
		f.p.verify = stale
		b := f.pendingBooking(t)
		_, err := f.p.SubmitProof(ctx, b.ID, 100, "slip", 360)
		require.NoError(t, err)

		final, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, final.Status)
		require.Len(t, f.notify.fraud, 1)
		assert.Equal(t, "fraud", f.notify.fraud[0].Classification)
	})

	t.Run("ReusedTransactionRefIsFraud", func(t *testing.T) {
		f := newPipelineFixture(t, &fakeVerifier{res: &verifier.Result{
			Valid: true, Amount: 360, ExternalRef: "TXN-SHARED",
		}})
		f.slips.attachDup = true
		b := f.pendingBooking(t)
		_, err := f.p.SubmitProof(ctx, b.ID, 100, "slip", 360)
		require.NoError(t, err)

		final, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, final.Status)
		require.Len(t, f.notify.fraud, 1)
		assert.Equal(t, "fraud", f.notify.fraud[0].Classification)
	})

	t.Run("VerifierOutageFailsOpen", func(t *testing.T) {
		f := newPipelineFixture(t, &fakeVerifier{err: context.DeadlineExceeded})
		b := f.pendingBooking(t)
		_, err := f.p.SubmitProof(ctx, b.ID, 100, "slip", 360)
		require.NoError(t, err)

		final, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, final.Status, "transient verifier failure keeps the booking")
		assert.Empty(t, f.notify.fraud)
	})

	t.Run("RepeatedRunAlertsOnce", func(t *testing.T) {
		f := newPipelineFixture(t, &fakeVerifier{res: &verifier.Result{
			Valid: false, Reason: "forged",
		}})
		b := f.pendingBooking(t)
		_, err := f.p.SubmitProof(ctx, b.ID, 100, "slip", 360)
		require.NoError(t, err)
		require.Len(t, f.notify.fraud, 1)

		// A duplicated background run must not alert a second time.
		fp := Fingerprint("slip")
		require.NoError(t, f.p.VerifyProof(ctx, b.ID, fp, "slip", 360))
		assert.Len(t, f.notify.fraud, 1)
	})
}
