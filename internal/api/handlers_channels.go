package api

import (
	"net/http"
	"time"

	"github.com/beaconwatch/beacon/internal/notify"
	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/validate"
)

type channelRequest struct {
	Name     *string                `json:"name"`
	Type     *string                `json:"type"`
	Config   *storage.ChannelConfig `json:"config"`
	IsActive *bool                  `json:"is_active"`
}

func (req *channelRequest) apply(ch *storage.NotificationChannel) {
	if req.Name != nil {
		ch.Name = validate.SanitizeText(*req.Name)
	}
	if req.Type != nil {
		ch.Type = *req.Type
	}
	if req.Config != nil {
		ch.Config = *req.Config
	}
	if req.IsActive != nil {
		ch.IsActive = *req.IsActive
	}
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.store.ListNotificationChannels(r.Context())
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	if channels == nil {
		channels = []*storage.NotificationChannel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if !readJSON(w, r, &req) {
		return
	}

	ch := &storage.NotificationChannel{
		Type:      "webhook",
		IsActive:  true,
		CreatedAt: s.now(),
	}
	req.apply(ch)

	if err := validate.Channel(ch); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.CreateNotificationChannel(r.Context(), ch); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	s.log.Info("channel created", "channel_id", ch.ID)
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	ch, err := s.store.GetNotificationChannel(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	ch, err := s.store.GetNotificationChannel(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}

	var req channelRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.apply(ch)

	if err := validate.Channel(ch); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.UpdateNotificationChannel(r.Context(), ch); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.DeleteNotificationChannel(r.Context(), id); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTestChannel sends a synthetic event through the normal
// dispatch path. The event key is unique per invocation, so repeated
// tests are never deduplicated away.
func (s *Server) handleTestChannel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	ch, err := s.store.GetNotificationChannel(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}

	now := s.now()
	payload := notify.BuildPayload("monitor.down",
		&storage.Monitor{ID: 0, Name: "test monitor", Type: "http", Target: "https://example.com"},
		&storage.CheckResult{CheckedAt: now, Status: storage.StatusDown, Error: "test delivery"},
		storage.StatusDown)

	eventKey := "test:" + payload.EventID
	s.dispatcher.Dispatch(r.Context(), []*storage.NotificationChannel{ch}, eventKey, payload)

	// Dispatch finalized the row synchronously; report the outcome.
	deliveries, err := s.store.ListDeliveries(r.Context(), eventKey)
	if err != nil || len(deliveries) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"event_key": eventKey, "status": "unknown"})
		return
	}
	d := deliveries[0]
	writeJSON(w, http.StatusOK, map[string]any{
		"event_key":   eventKey,
		"status":      d.Status,
		"http_status": d.HTTPStatus,
		"error":       d.Error,
		"sent_at":     time.Unix(d.CreatedAt, 0).UTC().Format(time.RFC3339),
	})
}
