package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

const (
	callerKey = "caller"
	tokenKey  = "bearer_token"
)

// authenticate resolves the bearer token into a caller.
// Optional routes stay anonymous on a bad token but still see the raw token.
func (s Server) authenticate(required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(echo.HeaderAuthorization)
			c.Set(tokenKey, token)

			caller, err := s.credentials.Validate(token)
			if err != nil {
				if required {
					return err
				}
				return next(c)
			}

			c.Set(callerKey, caller)
			return next(c)
		}
	}
}

func callerFrom(c echo.Context) (entity.Caller, error) {
	caller, ok := c.Get(callerKey).(entity.Caller)
	if !ok {
		return entity.Caller{}, entity.ErrAuthRequired
	}

	return caller, nil
}

func bearerFrom(c echo.Context) string {
	token, _ := c.Get(tokenKey).(string)
	return token
}

type errorResponse struct {
	Error    string `json:"error"`
	Expected string `json:"expected,omitempty"`
	Claimed  string `json:"claimed,omitempty"`
}

// errorHandler maps domain errors to status codes and leaves everything else to fallback.
func errorHandler(fallback echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			fallback(err, c)
			return
		}

		status, ok := statusFor(err)
		if !ok {
			fallback(err, c)
			return
		}

		if c.Response().Committed {
			return
		}

		body := errorResponse{Error: err.Error()}
		var mismatch entity.AmountMismatchError
		if errors.As(err, &mismatch) {
			body.Expected = mismatch.Expected.StringFixed(2)
			body.Claimed = mismatch.Claimed.StringFixed(2)
		}

		if err := c.JSON(status, body); err != nil {
			c.Logger().Error(err)
		}
	}
}

func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, entity.ErrValidation),
		errors.Is(err, entity.ErrMissingUTR),
		errors.Is(err, entity.ErrAmountMismatch):
		return http.StatusBadRequest, true
	case errors.Is(err, entity.ErrAuthRequired),
		errors.Is(err, entity.ErrInvalidCredential):
		return http.StatusUnauthorized, true
	case errors.Is(err, entity.ErrNotAuthorized),
		errors.Is(err, entity.ErrNotEntitled):
		return http.StatusForbidden, true
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, entity.ErrDuplicateRegistration),
		errors.Is(err, entity.ErrCapacityExceeded),
		errors.Is(err, entity.ErrRegistrationClosed),
		errors.Is(err, entity.ErrRegistrationPaused),
		errors.Is(err, entity.ErrNotIssued),
		errors.Is(err, entity.ErrTicketNotPending),
		errors.Is(err, entity.ErrTicketCheckedIn),
		errors.Is(err, entity.ErrProofAlreadyVerified):
		return http.StatusConflict, true
	case errors.Is(err, entity.ErrExternalServiceUnavailable):
		return http.StatusServiceUnavailable, true
	}

	return 0, false
}
