package api

import (
	"net/http"

	notificationCommands "github.com/felixgeelhaar/caravan/internal/notifications/application/commands"
	notificationQueries "github.com/felixgeelhaar/caravan/internal/notifications/application/queries"
)

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) error {
	limit, err := intQuery(r, "limit")
	if err != nil {
		return err
	}
	items, err := h.c.ListNotifications.Handle(r.Context(), notificationQueries.ListNotificationsQuery{
		UserID:     principalFrom(r.Context()).UserID,
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      limit,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(items))
	return nil
}

func (h *handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) error {
	id, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	err = h.c.MarkNotificationRead.Handle(r.Context(), notificationCommands.MarkReadCommand{
		NotificationID: id,
		UserID:         principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
