package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

var allowedProofTypes = []string{"image/jpeg", "image/png", "application/pdf"}

type FileStorage interface {
	Put(ctx context.Context, name string, content []byte) (string, error)
}

type ProofUpload struct {
	Screenshot []byte
	UTR        string
	// Amount is optional, the ticket's price is assumed when empty.
	Amount string
}

// ProofStore attaches payment evidence uploaded by guests to their tickets.
type ProofStore struct {
	tickets TicketsRepository
	events  EventsRepository
	files   FileStorage
	maxSize int64

	now func() time.Time
}

func NewProofStore(tickets TicketsRepository, events EventsRepository, files FileStorage, maxSize int64) *ProofStore {
	if tickets == nil {
		panic("tickets repository is required")
	}
	if events == nil {
		panic("events repository is required")
	}
	if files == nil {
		panic("file storage is required")
	}
	if maxSize <= 0 {
		panic("max proof size must be positive")
	}

	return &ProofStore{
		tickets: tickets,
		events:  events,
		files:   files,
		maxSize: maxSize,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func ownsTicket(caller entity.Caller, ticket entity.Ticket) bool {
	if caller.IsAdmin() {
		return true
	}
	if caller.AccountID != "" && caller.AccountID == ticket.UserID {
		return true
	}
	return caller.Email != "" && entity.NormalizeEmail(caller.Email) == ticket.GuestEmail
}

func (s *ProofStore) Upload(ctx context.Context, ticketID string, caller entity.Caller, upload ProofUpload) (entity.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return entity.Ticket{}, err
	}
	if !ownsTicket(caller, ticket) {
		return entity.Ticket{}, entity.ErrNotAuthorized
	}

	event, err := s.events.Get(ctx, ticket.EventID)
	if err != nil {
		return entity.Ticket{}, err
	}
	if !event.IsPaid() || !event.PaymentConfig.Enabled {
		return entity.Ticket{}, entity.NewValidationError("event does not accept payment proofs")
	}
	if ticket.PaymentProof != nil && ticket.PaymentProof.VerificationStatus == entity.VerificationStatusVerified {
		return entity.Ticket{}, entity.ErrProofAlreadyVerified
	}

	utr := NormalizeUTR(upload.UTR)
	if err := CheckUTR(utr); err != nil {
		return entity.Ticket{}, err
	}

	claimed := ticket.EffectivePrice(event.Price)
	if upload.Amount != "" {
		claimed, err = decimal.NewFromString(upload.Amount)
		if err != nil || !claimed.IsPositive() {
			return entity.Ticket{}, entity.NewValidationError("amount must be a positive number")
		}
	}

	contentType, err := s.checkScreenshot(upload.Screenshot)
	if err != nil {
		return entity.Ticket{}, err
	}

	uploadedAt := s.now()
	name := fmt.Sprintf("%s-%d%s", ticket.TicketID, uploadedAt.UnixNano(), contentType.Extension())

	ref, err := s.files.Put(ctx, name, upload.Screenshot)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not store payment screenshot: %w", err)
	}

	updated, err := s.tickets.Update(ctx, ticketID, func(ctx context.Context, ticket *entity.Ticket, event entity.Event) ([]entity.BusEvent, error) {
		if ticket.PaymentProof != nil && ticket.PaymentProof.VerificationStatus == entity.VerificationStatusVerified {
			return nil, entity.ErrProofAlreadyVerified
		}

		ticket.PaymentProof = &entity.PaymentProof{
			ScreenshotRef:      ref,
			UTR:                utr,
			ClaimedAmount:      claimed,
			UploadedAt:         uploadedAt,
			VerificationStatus: entity.VerificationStatusPending,
			VerificationMethod: entity.VerificationMethodNone,
		}
		if ticket.PaymentStatus != entity.PaymentStatusCompleted {
			ticket.PaymentStatus = entity.PaymentStatusPending
		}

		return nil, nil
	})
	if err != nil {
		return entity.Ticket{}, err
	}

	log.FromContext(ctx).
		WithField("ticket_id", ticketID).
		WithField("utr", utr).
		WithField("content_type", contentType.String()).
		Info("Payment proof uploaded")

	return updated, nil
}

func (s *ProofStore) checkScreenshot(content []byte) (*mimetype.MIME, error) {
	if len(content) == 0 {
		return nil, entity.NewValidationError("payment screenshot is required")
	}
	if int64(len(content)) > s.maxSize {
		return nil, entity.NewValidationError("payment screenshot exceeds %d bytes", s.maxSize)
	}

	contentType := mimetype.Detect(content)
	if !mimetype.EqualsAny(contentType.String(), allowedProofTypes...) {
		return nil, entity.NewValidationError("payment screenshot must be a JPEG, PNG or PDF file, got %s", contentType.String())
	}

	return contentType, nil
}
