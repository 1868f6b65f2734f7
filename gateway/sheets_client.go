package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type SheetsClient struct {
	http httpClient
}

func NewSheetsClient(url string) SheetsClient {
	if url == "" {
		panic("missing sheets url")
	}

	return SheetsClient{
		http: newHTTPClient(url, 10*time.Second),
	}
}

type appendRowRequest struct {
	Columns []string `json:"columns"`
}

func (c SheetsClient) AppendRow(ctx context.Context, sheetID string, row []string) error {
	path := fmt.Sprintf("/sheets/%s/rows", url.PathEscape(sheetID))

	status, err := c.http.doJSON(ctx, http.MethodPost, path, appendRowRequest{Columns: row}, nil)
	if err != nil {
		return fmt.Errorf("could not append row to sheet %s: %w", sheetID, err)
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusNoContent {
		return fmt.Errorf("unexpected status code for POST spreadsheets-api%s: %d", path, status)
	}

	return nil
}
