package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"careerprep/pkg/config"
	"careerprep/pkg/models"
	"careerprep/pkg/processor"
	"careerprep/pkg/store"
)

// ResponseProcessor runs the response pipeline
type ResponseProcessor interface {
	ProcessResponse(ctx context.Context, id string) (*processor.Result, error)
	ProcessBatch(ctx context.Context) (*processor.BatchResult, error)
}

// Leadership reports whether this pod runs the periodic batch
type Leadership interface {
	IsLeader() bool
	VerifyLeadership(ctx context.Context) bool
}

type Handler struct {
	store      store.Store
	processor  ResponseProcessor
	config     *config.Config
	logger     *logrus.Logger
	leadership Leadership
}

func NewHandler(st store.Store, proc ResponseProcessor, config *config.Config, logger *logrus.Logger, leadership Leadership) *Handler {
	return &Handler{
		store:      st,
		processor:  proc,
		config:     config,
		logger:     logger,
		leadership: leadership,
	}
}

type singleResult struct {
	Success bool `json:"success"`
	*processor.Result
}

type batchResult struct {
	Success bool `json:"success"`
	*processor.BatchResult
}

// Process handles {response_id?, batch_process?}. Without a response id the
// call runs a batch.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var request models.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if request.ResponseID != "" {
		result, err := h.processor.ProcessResponse(r.Context(), request.ResponseID)
		if err != nil {
			h.logger.WithError(err).WithField("response_id", request.ResponseID).Warn("Failed to process response")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, singleResult{Success: true, Result: result})
		return
	}

	result, err := h.processor.ProcessBatch(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Failed to process batch")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, batchResult{Success: true, BatchResult: result})
}

// SubmitResponse records an intern's reply as pending
func (h *Handler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	var request models.SubmitResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if request.MessageID == "" || request.SessionID == "" || request.UserID == "" {
		writeError(w, http.StatusBadRequest, "message_id, session_id and user_id are required")
		return
	}

	resp := &models.Response{
		MessageID:  request.MessageID,
		SessionID:  request.SessionID,
		UserID:     request.UserID,
		Content:    request.Content,
		ReceivedAt: time.Now(),
	}
	if err := h.store.CreateResponse(r.Context(), resp); err != nil {
		h.logger.WithError(err).WithField("session_id", request.SessionID).Error("Failed to store response")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, resp)

	h.logger.WithFields(logrus.Fields{
		"response_id": resp.ID,
		"session_id":  resp.SessionID,
	}).Debug("Accepted response")
}

func (h *Handler) GetResponse(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	resp, err := h.store.GetResponse(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Response not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("response_id", id).Error("Failed to get response")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SaveMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg.SessionID == "" || msg.SenderType == "" {
		writeError(w, http.StatusBadRequest, "session_id and sender_type are required")
		return
	}
	if !msg.SenderType.Valid() {
		writeError(w, http.StatusBadRequest, "sender_type must be supervisor, team or intern")
		return
	}

	if err := h.store.InsertMessage(r.Context(), &msg); err != nil {
		h.logger.WithError(err).Error("Failed to store message")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) SessionMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	messages, err := h.store.ListSessionMessages(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", id).Error("Failed to list messages")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"messages":   messages,
	})
}

func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	var session models.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session.ID = mux.Vars(r)["id"]

	if err := h.store.SaveSession(r.Context(), &session); err != nil {
		h.logger.WithError(err).WithField("session_id", session.ID).Error("Failed to store session")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	profile.ID = mux.Vars(r)["id"]

	if err := h.store.SaveProfile(r.Context(), &profile); err != nil {
		h.logger.WithError(err).WithField("user_id", profile.ID).Error("Failed to store profile")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.WithError(err).Warn("Health check failed")
		writeError(w, http.StatusServiceUnavailable, "Health check failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"is_leader": h.leadership.IsLeader(),
		"timestamp": time.Now(),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pod_id":            h.config.PodID,
		"backend":           h.config.StoreBackend,
		"is_leader":         h.leadership.VerifyLeadership(r.Context()),
		"pending_responses": count,
		"timestamp":         time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
