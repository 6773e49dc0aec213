package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mailpane/mailpane/internal/mailbox"
	"github.com/mailpane/mailpane/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges a successful write.
type MessageResponse struct {
	Message string `json:"message"`
}

// SendRequest is the body of POST /messages. Recipients may be a comma
// separated string or a JSON array of addresses.
type SendRequest struct {
	Recipients json.RawMessage `json:"recipients"`
	Subject    string          `json:"subject"`
	Body       string          `json:"body"`
}

// recipients decodes either accepted shape of the recipients field.
func (req SendRequest) recipients() ([]string, error) {
	raw := req.Recipients
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return mailbox.ParseRecipients(joined), nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	var out []string
	for _, r := range list {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) owner() string {
	return s.cfg.Server.User
}

// handleSend stores a new message from the served user.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	recipients, err := req.recipients()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	_, err = s.store.Send(r.Context(), store.Outgoing{
		Sender:     s.owner(),
		Recipients: recipients,
		Subject:    req.Subject,
		Body:       req.Body,
		SentAt:     s.now(),
	})
	var invalid *store.InvalidRecipientError
	switch {
	case errors.Is(err, store.ErrNoRecipients):
		writeError(w, http.StatusBadRequest, "At least one recipient required.")
		return
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "Invalid recipient: "+invalid.Address)
		return
	case err != nil:
		s.logger.Error("failed to send message", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send message.")
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Email sent successfully."})
}

// handleGetMessages serves a mailbox listing for a mailbox name and a single
// message for a numeric id.
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		s.getMessage(w, r, id)
		return
	}

	mb := mailbox.MailboxID(ref)
	if !mb.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid mailbox.")
		return
	}
	items, err := s.store.Mailbox(r.Context(), s.owner(), mb)
	if err != nil {
		s.logger.Error("failed to list mailbox", "mailbox", mb, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load mailbox.")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request, id int64) {
	msg, err := s.store.Message(r.Context(), s.owner(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Email not found.")
		return
	}
	if err != nil {
		s.logger.Error("failed to get message", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load message.")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// handleUpdateMessage sets the read and archived flags of a message.
func (s *Server) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ref"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message id.")
		return
	}

	var patch mailbox.Patch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	err = s.store.Update(r.Context(), s.owner(), id, patch)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Email not found.")
		return
	}
	if err != nil {
		s.logger.Error("failed to update message", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update message.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCounts returns the sizes of the served user's mailboxes.
func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context(), s.owner())
	if err != nil {
		s.logger.Error("failed to count messages", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to count messages.")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
