package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/payment"
)

type postVerifyManualRequest struct {
	Decision payment.Decision `json:"decision"`
	Reason   string           `json:"reason"`
	Force    bool             `json:"force"`
}

type postVerifyAutoRequest struct {
	StatementText string `json:"statement_text"`
	Date          string `json:"date"`
}

type postBulkVerifyRequest struct {
	StatementText string `json:"statement_text"`
}

type bulkVerifyResponse struct {
	Results []entity.BulkVerificationResult `json:"results"`
	Summary map[entity.BulkResultStatus]int `json:"summary"`
}

func (s Server) PostPaymentProof(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("screenshot")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "screenshot file is required")
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("could not open uploaded screenshot: %w", err)
	}
	defer src.Close()

	// one byte over the limit is enough for the store to refuse it
	screenshot, err := io.ReadAll(io.LimitReader(src, s.maxProofSize+1))
	if err != nil {
		return fmt.Errorf("could not read uploaded screenshot: %w", err)
	}

	ticket, err := s.proofs.Upload(c.Request().Context(), c.Param("id"), caller, payment.ProofUpload{
		Screenshot: screenshot,
		UTR:        c.FormValue("utr"),
		Amount:     c.FormValue("amount"),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ticket)
}

func (s Server) PostVerifyManual(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	var r postVerifyManualRequest
	if err := c.Bind(&r); err != nil {
		return err
	}

	result, err := s.verifier.VerifyManual(c.Request().Context(), c.Param("id"), caller, payment.ManualVerification{
		Decision: r.Decision,
		Reason:   r.Reason,
		Force:    r.Force,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (s Server) PostVerifyAuto(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	var r postVerifyAutoRequest
	if err := c.Bind(&r); err != nil {
		return err
	}

	result, err := s.verifier.VerifyAuto(c.Request().Context(), c.Param("id"), caller, payment.AutoVerification{
		StatementText: r.StatementText,
		Date:          r.Date,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (s Server) PostBulkVerify(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	var r postBulkVerifyRequest
	if err := c.Bind(&r); err != nil {
		return err
	}

	results, err := s.verifier.VerifyBulk(c.Request().Context(), caller, r.StatementText)
	if err != nil {
		return err
	}
	if results == nil {
		results = []entity.BulkVerificationResult{}
	}

	return c.JSON(http.StatusOK, bulkVerifyResponse{
		Results: results,
		Summary: lo.CountValuesBy(results, func(r entity.BulkVerificationResult) entity.BulkResultStatus {
			return r.Status
		}),
	})
}

func (s Server) GetPendingPayments(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	page, err := intQueryParam(c, "page")
	if err != nil {
		return err
	}
	limit, err := intQueryParam(c, "limit")
	if err != nil {
		return err
	}

	result, err := s.verifier.PendingPayments(c.Request().Context(), caller, page, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func intQueryParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a number", name))
	}

	return value, nil
}
