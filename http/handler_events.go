package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/registration"
)

type postEventRequest struct {
	Title                      string               `json:"title"`
	Status                     entity.EventStatus   `json:"status"`
	Capacity                   int                  `json:"capacity"`
	WaitlistEnabled            bool                 `json:"waitlist_enabled"`
	ApprovalRequired           bool                 `json:"approval_required"`
	AllowMultipleRegistrations bool                 `json:"allow_multiple_registrations"`
	RegistrationCloseTime      *time.Time           `json:"registration_close_time"`
	Price                      decimal.Decimal      `json:"price"`
	PaymentConfig              entity.PaymentConfig `json:"payment_config"`
	FormSchema                 entity.FormSchema    `json:"form_schema"`
	SheetID                    string               `json:"sheet_id"`
	Coordinators               []string             `json:"coordinators"`
}

type postRegisterRequest struct {
	FormResponses entity.FormResponses `json:"form_responses"`
	Email         string               `json:"email"`
}

type registerResponse struct {
	Ticket    entity.Ticket        `json:"ticket"`
	ShortCode string               `json:"short_code"`
	Outcome   registration.Outcome `json:"outcome"`
	Confirmed bool                 `json:"confirmed"`
}

func (s Server) PostEvents(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	var r postEventRequest
	if err := c.Bind(&r); err != nil {
		return err
	}

	event, err := s.registrations.CreateEvent(c.Request().Context(), caller, entity.Event{
		Title:                      r.Title,
		Status:                     r.Status,
		Capacity:                   r.Capacity,
		WaitlistEnabled:            r.WaitlistEnabled,
		ApprovalRequired:           r.ApprovalRequired,
		AllowMultipleRegistrations: r.AllowMultipleRegistrations,
		RegistrationCloseTime:      r.RegistrationCloseTime,
		Price:                      r.Price,
		PaymentConfig:              r.PaymentConfig,
		FormSchema:                 r.FormSchema,
		SheetID:                    r.SheetID,
		Coordinators:               r.Coordinators,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, event)
}

func (s Server) PostRegister(c echo.Context) error {
	var r postRegisterRequest
	if err := c.Bind(&r); err != nil {
		return err
	}

	result, err := s.registrations.Register(c.Request().Context(), registration.RegisterRequest{
		EventID:       c.Param("id"),
		FormResponses: r.FormResponses,
		Email:         r.Email,
		BearerToken:   bearerFrom(c),
	})
	if err != nil {
		return err
	}

	status := http.StatusAccepted
	if result.Confirmed() {
		status = http.StatusCreated
	}

	return c.JSON(status, registerResponse{
		Ticket:    result.Ticket,
		ShortCode: result.Ticket.ShortCode(),
		Outcome:   result.Outcome,
		Confirmed: result.Confirmed(),
	})
}

func (s Server) GetRegistration(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email query parameter is required")
	}

	status, err := s.registrations.CheckRegistration(c.Request().Context(), c.Param("id"), email)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, status)
}

func (s Server) GetPendingTickets(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	tickets, err := s.registrations.PendingTickets(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return err
	}
	if tickets == nil {
		tickets = []entity.Ticket{}
	}

	return c.JSON(http.StatusOK, tickets)
}
