package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

type postCheckInRequest struct {
	Code string `json:"code"`
}

type checkInResponse struct {
	Ticket           entity.Ticket `json:"ticket"`
	AlreadyCheckedIn bool          `json:"already_checked_in"`
}

func (s Server) PostCheckIn(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	var r postCheckInRequest
	if err := c.Bind(&r); err != nil {
		return err
	}

	result, err := s.registrations.CheckIn(c.Request().Context(), r.Code, caller)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, checkInResponse{
		Ticket:           result.Ticket,
		AlreadyCheckedIn: result.AlreadyCheckedIn,
	})
}

func (s Server) PostApprove(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	ticket, err := s.registrations.Approve(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ticket)
}

func (s Server) PostReject(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	if err := s.registrations.Reject(c.Request().Context(), c.Param("id"), caller); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
