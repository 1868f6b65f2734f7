package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

type NotificationsClient struct {
	http httpClient
}

func NewNotificationsClient(url string) NotificationsClient {
	if url == "" {
		panic("missing notifications url")
	}

	return NotificationsClient{
		http: newHTTPClient(url, 10*time.Second),
	}
}

func (c NotificationsClient) SendTicketConfirmation(ctx context.Context, confirmation entity.TicketConfirmation) error {
	return c.post(ctx, "/ticket-confirmations", confirmation)
}

func (c NotificationsClient) NotifyHost(ctx context.Context, notification entity.HostNotification) error {
	return c.post(ctx, "/host-notifications", notification)
}

func (c NotificationsClient) post(ctx context.Context, path string, body any) error {
	status, err := c.http.doJSON(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return fmt.Errorf("could not call POST notifications-api%s: %w", path, err)
	}

	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusConflict:
		log.FromContext(ctx).Infof("notification %s already sent", path)
		return nil
	default:
		return fmt.Errorf("unexpected status code for POST notifications-api%s: %d", path, status)
	}
}
