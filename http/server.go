package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/payment"
	"github.com/devkiraa/makeTicket-sub000/registration"
)

const serviceName = "svc-registrations"

// multipartOverhead covers form fields and part headers sent next to the screenshot.
const multipartOverhead = 64 << 10

type RegistrationService interface {
	Register(ctx context.Context, req registration.RegisterRequest) (registration.Result, error)
	CheckRegistration(ctx context.Context, eventID string, email string) (entity.RegistrationStatus, error)
	CreateEvent(ctx context.Context, caller entity.Caller, event entity.Event) (entity.Event, error)
	PendingTickets(ctx context.Context, eventID string, caller entity.Caller) ([]entity.Ticket, error)
	Approve(ctx context.Context, ticketID string, caller entity.Caller) (entity.Ticket, error)
	Reject(ctx context.Context, ticketID string, caller entity.Caller) error
	CheckIn(ctx context.Context, code string, caller entity.Caller) (registration.CheckInResult, error)
}

type PaymentVerifier interface {
	VerifyManual(ctx context.Context, ticketID string, caller entity.Caller, req payment.ManualVerification) (payment.ManualResult, error)
	VerifyAuto(ctx context.Context, ticketID string, caller entity.Caller, req payment.AutoVerification) (payment.AutoResult, error)
	VerifyBulk(ctx context.Context, caller entity.Caller, statementText string) ([]entity.BulkVerificationResult, error)
	PendingPayments(ctx context.Context, caller entity.Caller, page int, limit int) (payment.PendingPaymentsPage, error)
}

type ProofStore interface {
	Upload(ctx context.Context, ticketID string, caller entity.Caller, upload payment.ProofUpload) (entity.Ticket, error)
}

type CredentialValidator interface {
	Validate(token string) (entity.Caller, error)
}

type Server struct {
	addr          string
	e             *echo.Echo
	registrations RegistrationService
	verifier      PaymentVerifier
	proofs        ProofStore
	credentials   CredentialValidator
	maxProofSize  int64
}

func NewServer(
	addr string,
	registrations RegistrationService,
	verifier PaymentVerifier,
	proofs ProofStore,
	credentials CredentialValidator,
	maxProofSize int64,
) *Server {
	if registrations == nil {
		panic("registration service is required")
	}
	if verifier == nil {
		panic("payment verifier is required")
	}
	if proofs == nil {
		panic("proof store is required")
	}
	if credentials == nil {
		panic("credential validator is required")
	}

	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware(serviceName))
	e.HTTPErrorHandler = errorHandler(e.HTTPErrorHandler)

	server := &Server{
		addr:          addr,
		e:             e,
		registrations: registrations,
		verifier:      verifier,
		proofs:        proofs,
		credentials:   credentials,
		maxProofSize:  maxProofSize,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	optional := server.authenticate(false)
	required := server.authenticate(true)

	e.POST("/events", server.PostEvents, required)
	e.POST("/events/:id/register", server.PostRegister, optional)
	e.GET("/events/:id/registration", server.GetRegistration)
	e.GET("/events/:id/pending-tickets", server.GetPendingTickets, required)

	e.POST("/scan/check-in", server.PostCheckIn, required)

	e.POST("/tickets/:id/approve", server.PostApprove, required)
	e.POST("/tickets/:id/reject", server.PostReject, required)
	proofBodyLimit := middleware.BodyLimit(fmt.Sprintf("%dB", maxProofSize+multipartOverhead))
	e.POST("/tickets/:id/payment-proof", server.PostPaymentProof, proofBodyLimit, required)
	e.POST("/tickets/:id/verify-manual", server.PostVerifyManual, required)
	e.POST("/tickets/:id/verify-auto", server.PostVerifyAuto, required)

	e.POST("/payments/bulk-verify", server.PostBulkVerify, required)
	e.GET("/payments/pending", server.GetPendingPayments, required)

	return server
}

// ServeHTTP lets tests drive the router without a listener.
func (s Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(ctx)
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
