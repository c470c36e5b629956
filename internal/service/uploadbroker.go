package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stayhub/booking-core/internal/model"
	"github.com/stayhub/booking-core/internal/utils"
)

// Business outcomes of upload-token operations.
var (
	ErrTokenExpired  = errors.New("upload token has expired")
	ErrTokenUsed     = errors.New("upload token was already used")
	ErrProofTooLarge = errors.New("proof exceeds the size limit")
	ErrNotAnImage    = errors.New("proof must be an image")
)

// UploadTokenStore is the persistence contract for upload tokens.
type UploadTokenStore interface {
	InvalidatePrior(ctx context.Context, guestID, roomID uint64, dr model.DateRange, now time.Time) error
	Insert(ctx context.Context, t *model.UploadToken) error
	GetByToken(ctx context.Context, token string) (*model.UploadToken, error)
	MarkUsed(ctx context.Context, token, proofURL string, now time.Time) (bool, error)
}

// ProofStorage stores uploaded proof images and returns a stable URL.
// Delete takes a URL previously returned by Save.
type ProofStorage interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// TokenStatus is what the initiating device polls for.
type TokenStatus struct {
	IsUploaded bool    `json:"is_uploaded"`
	ProofURL   *string `json:"proof_url,omitempty"`
	Expired    bool    `json:"expired"`
}

// UploadBroker issues and consumes the short-lived tokens that let an
// anonymous second device upload a payment proof for a booking
// attempt.  The token string is the only credential involved.  Status
// reads go through Redis when available so polling does not hammer
// the primary database; the cache is an optimisation only and the
// broker works without it.
type UploadBroker struct {
	tokens   UploadTokenStore
	storage  ProofStorage
	rdb      *redis.Client // may be nil; status polling then falls back to MySQL
	ttl      time.Duration
	maxBytes int
	clock    Clock
	log      *logrus.Logger
}

// NewUploadBroker wires the broker.  rdb may be nil.
func NewUploadBroker(tokens UploadTokenStore, storage ProofStorage, rdb *redis.Client,
	ttl time.Duration, maxBytes int, clock Clock, log *logrus.Logger) *UploadBroker {
	if tokens == nil || storage == nil || clock == nil || log == nil {
		panic("nil dependency passed to NewUploadBroker")
	}
	return &UploadBroker{
		tokens:   tokens,
		storage:  storage,
		rdb:      rdb,
		ttl:      ttl,
		maxBytes: maxBytes,
		clock:    clock,
		log:      log,
	}
}

// IssueParams snapshots the booking attempt onto the token.
type IssueParams struct {
	RoomID      uint64
	Dates       model.DateRange
	Guests      uint32
	TotalAmount float64
}

// Issue creates a fresh token for the guest's booking attempt,
// expiring any prior unconsumed token for the same guest+room+range so
// at most one token is live per attempt.
func (b *UploadBroker) Issue(ctx context.Context, guestID uint64, p IssueParams) (*model.UploadToken, error) {
	if err := p.Dates.Validate(); err != nil {
		return nil, err
	}
	now := b.clock()
	if err := b.tokens.InvalidatePrior(ctx, guestID, p.RoomID, p.Dates, now); err != nil {
		return nil, err
	}
	raw, err := utils.RandomHex(32)
	if err != nil {
		return nil, err
	}
	t := &model.UploadToken{
		Token:       raw,
		GuestID:     guestID,
		RoomID:      p.RoomID,
		Dates:       p.Dates,
		Guests:      p.Guests,
		TotalAmount: p.TotalAmount,
		ExpiresAt:   now.Add(b.ttl),
		CreatedAt:   now,
	}
	if err := b.tokens.Insert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Consume accepts the proof upload from the anonymous device.  The
// token must exist, be unexpired and unused; the payload must be an
// image under the size ceiling.  Validation failures do not consume
// the token, so the guest can retry with a correct file.  Consumption
// itself is a conditional update: two devices racing on one token
// cannot both win.
func (b *UploadBroker) Consume(ctx context.Context, token, filename string, data []byte) (string, error) {
	t, err := b.tokens.GetByToken(ctx, token)
	if err != nil {
		return "", err
	}
	now := b.clock()
	if t.Expired(now) {
		return "", ErrTokenExpired
	}
	if t.Used {
		return "", ErrTokenUsed
	}
	if len(data) > b.maxBytes {
		return "", ErrProofTooLarge
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotAnImage
	}

	key := fmt.Sprintf("proofs/%d/%s%s", t.RoomID, token[:16], extensionFor(contentType, filename))
	proofURL, err := b.storage.Save(ctx, key, contentType, data)
	if err != nil {
		return "", err
	}
	ok, err := b.tokens.MarkUsed(ctx, token, proofURL, now)
	if err != nil {
		return "", err
	}
	if !ok {
		// Another device won the race after our Save; remove the
		// orphaned object and report the token as spent.
		if delErr := b.storage.Delete(ctx, proofURL); delErr != nil {
			b.log.WithError(delErr).Warn("orphaned proof cleanup failed")
		}
		return "", ErrTokenUsed
	}
	b.cacheStatus(ctx, t.Token, TokenStatus{IsUploaded: true, ProofURL: &proofURL}, t.ExpiresAt.Sub(now))
	return proofURL, nil
}

// Status reports whether a proof has arrived for the token.  Redis is
// the fast path; a miss falls back to the database.
func (b *UploadBroker) Status(ctx context.Context, token string) (TokenStatus, error) {
	if b.rdb != nil {
		if raw, err := b.rdb.Get(ctx, statusKey(token)).Result(); err == nil {
			var st TokenStatus
			if json.Unmarshal([]byte(raw), &st) == nil {
				return st, nil
			}
		}
	}
	t, err := b.tokens.GetByToken(ctx, token)
	if err != nil {
		return TokenStatus{}, err
	}
	st := TokenStatus{
		IsUploaded: t.Used,
		ProofURL:   t.ProofURL,
		Expired:    t.Expired(b.clock()) && !t.Used,
	}
	return st, nil
}

// cacheStatus best-effort writes the status to Redis; errors are
// logged and ignored.
func (b *UploadBroker) cacheStatus(ctx context.Context, token string, st TokenStatus, ttl time.Duration) {
	if b.rdb == nil {
		return
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := b.rdb.Set(ctx, statusKey(token), raw, ttl).Err(); err != nil {
		b.log.WithError(err).Debug("upload token status cache write failed")
	}
}

func statusKey(token string) string { return "upload_token:" + token }

// extensionFor picks a file extension from the detected content type,
// falling back to whatever the client named the file.
func extensionFor(contentType, filename string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i:]
	}
	return ""
}
