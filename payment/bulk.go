package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/metrics"
)

func canReviewPayments(caller entity.Caller) bool {
	return caller.IsAdmin() || (caller.Role == entity.RoleHost && caller.AccountID != "")
}

func pendingFilter(caller entity.Caller) entity.PendingPaymentsFilter {
	if caller.IsAdmin() {
		return entity.PendingPaymentsFilter{}
	}

	return entity.PendingPaymentsFilter{HostID: caller.AccountID}
}

// VerifyBulk matches every pending proof of the caller's events against one statement.
// Each proof gets its own result row, a failing proof never stops the others.
func (v *Verifier) VerifyBulk(ctx context.Context, caller entity.Caller, statementText string) ([]entity.BulkVerificationResult, error) {
	if !canReviewPayments(caller) {
		return nil, entity.ErrNotAuthorized
	}
	if statementText == "" {
		return nil, entity.NewValidationError("statement text is required")
	}

	filter := pendingFilter(caller)
	filter.RequireUTR = true

	pending, err := v.tickets.ListPendingProofs(ctx, filter)
	if err != nil {
		return nil, err
	}

	logger := log.FromContext(ctx).WithField("pending_proofs", len(pending))
	logger.Info("Starting bulk payment verification")

	results := make([]entity.BulkVerificationResult, len(pending))

	for _, batch := range lo.Chunk(lo.Range(len(pending)), v.config.BulkBatchSize) {
		var g errgroup.Group
		for _, i := range batch {
			i := i
			g.Go(func() error {
				// a cancelled request stops before the next match
				if err := ctx.Err(); err != nil {
					return err
				}
				results[i] = v.verifyOne(ctx, caller, pending[i], statementText)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("bulk verification interrupted: %w", err)
		}
	}

	v.markDuplicateUTRs(ctx, results)

	counts := lo.CountValuesBy(results, func(r entity.BulkVerificationResult) entity.BulkResultStatus {
		return r.Status
	})
	logger.WithField("results", counts).Info("Bulk payment verification finished")

	return results, nil
}

func (v *Verifier) verifyOne(
	ctx context.Context,
	caller entity.Caller,
	pending entity.PendingPayment,
	statementText string,
) (result entity.BulkVerificationResult) {
	ticket := pending.Ticket
	proof := ticket.PaymentProof
	expected := pending.ExpectedAmount()

	result = entity.BulkVerificationResult{
		TicketID:       ticket.TicketID,
		EventID:        ticket.EventID,
		GuestName:      ticket.GuestName,
		GuestEmail:     ticket.GuestEmail,
		UTR:            proof.UTR,
		ClaimedAmount:  proof.ClaimedAmount,
		ExpectedAmount: expected,
	}

	defer func() {
		if r := recover(); r != nil {
			log.FromContext(ctx).WithField("ticket_id", ticket.TicketID).WithField("panic", r).Error("Bulk verification panicked")
			result.Status = entity.BulkResultError
			result.Message = fmt.Sprintf("internal error: %v", r)
		}
		metrics.PaymentVerificationsTotal.WithLabelValues(string(entity.VerificationMethodAutoBulk), string(result.Status)).Inc()
	}()

	if err := ValidateAmount(expected, proof.ClaimedAmount, v.config.Tolerance); err != nil {
		result.Status = entity.BulkResultAmountMismatch
		result.Message = err.Error()
		return result
	}

	match, err := v.match(ctx, *proof, statementText, "")
	if err != nil {
		result.Status = entity.BulkResultError
		result.Message = err.Error()
		return result
	}
	result.MatchedAmount = match.MatchedAmount
	result.Message = match.Message

	_, _, err = v.applyMatch(ctx, ticket, expected, caller, entity.VerificationMethodAutoBulk, match)
	switch {
	case errors.Is(err, entity.ErrAmountMismatch):
		result.Status = entity.BulkResultStatementAmountMismatch
		result.Message = err.Error()
	case err != nil:
		log.FromContext(ctx).WithError(err).WithField("ticket_id", ticket.TicketID).Warn("Could not apply statement match")
		result.Status = entity.BulkResultError
		result.Message = err.Error()
	case match.Status == entity.MatchStatusVerified:
		result.Status = entity.BulkResultVerified
	case match.Status == entity.MatchStatusNotFound:
		result.Status = entity.BulkResultNotFound
		if result.Message == "" {
			result.Message = notFoundReason
		}
	default:
		result.Status = entity.BulkResultNeedsManualReview
	}

	return result
}

// markDuplicateUTRs flags rows whose reference is used by more than one pending or verified proof,
// counting both this run and the rest of the database. Flags never change verification outcomes.
func (v *Verifier) markDuplicateUTRs(ctx context.Context, results []entity.BulkVerificationResult) {
	if len(results) == 0 {
		return
	}

	inBatch := lo.CountValuesBy(results, func(r entity.BulkVerificationResult) string {
		return r.UTR
	})

	ids := lo.Map(results, func(r entity.BulkVerificationResult, _ int) string {
		return r.TicketID
	})

	elsewhere, err := v.tickets.UTRUsage(ctx, lo.Keys(inBatch), ids)
	if err != nil {
		log.FromContext(ctx).WithError(err).Warn("Could not check transaction references outside the batch")
		elsewhere = map[string]int{}
	}

	for i := range results {
		results[i].IsDuplicateUTR = inBatch[results[i].UTR]+elsewhere[results[i].UTR] > 1
	}
}

type PendingPaymentsPage struct {
	Payments []entity.PendingPayment `json:"payments"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	Limit    int                     `json:"limit"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (v *Verifier) PendingPayments(ctx context.Context, caller entity.Caller, page int, limit int) (PendingPaymentsPage, error) {
	if !canReviewPayments(caller) {
		return PendingPaymentsPage{}, entity.ErrNotAuthorized
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	limit = lo.Min([]int{limit, maxPageLimit})

	filter := pendingFilter(caller)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	payments, err := v.tickets.ListPendingProofs(ctx, filter)
	if err != nil {
		return PendingPaymentsPage{}, err
	}
	total, err := v.tickets.CountPendingProofs(ctx, filter)
	if err != nil {
		return PendingPaymentsPage{}, err
	}

	utrs := lo.Uniq(lo.FilterMap(payments, func(p entity.PendingPayment, _ int) (string, bool) {
		return p.Ticket.PaymentProof.UTR, p.Ticket.PaymentProof.UTR != ""
	}))
	usage, err := v.tickets.UTRUsage(ctx, utrs, nil)
	if err != nil {
		return PendingPaymentsPage{}, err
	}
	for i := range payments {
		payments[i].IsDuplicateUTR = usage[payments[i].Ticket.PaymentProof.UTR] > 1
	}

	return PendingPaymentsPage{Payments: payments, Total: total, Page: page, Limit: limit}, nil
}
