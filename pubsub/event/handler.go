package event

import (
	"context"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

type NotificationsService interface {
	SendTicketConfirmation(ctx context.Context, confirmation entity.TicketConfirmation) error
	NotifyHost(ctx context.Context, notification entity.HostNotification) error
}

type SpreadsheetsAPI interface {
	AppendRow(ctx context.Context, sheetID string, row []string) error
}

type ContactsRepository interface {
	Upsert(ctx context.Context, hostID string, eventID string, guest entity.GuestDetails) error
}

type Handler struct {
	notificationsService NotificationsService
	spreadsheetsService  SpreadsheetsAPI
	contactsRepository   ContactsRepository
}

func NewHandler(
	notificationsService NotificationsService,
	spreadsheetsService SpreadsheetsAPI,
	contactsRepository ContactsRepository,
) Handler {
	if notificationsService == nil {
		panic("missing notificationsService")
	}
	if spreadsheetsService == nil {
		panic("missing spreadsheetsService")
	}
	if contactsRepository == nil {
		panic("missing contactsRepository")
	}

	return Handler{
		notificationsService: notificationsService,
		spreadsheetsService:  spreadsheetsService,
		contactsRepository:   contactsRepository,
	}
}
