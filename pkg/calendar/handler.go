package calendar

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/eventcal/internal/rest"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store}
}

type deleteResponse struct {
	Message string `json:"message"`
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input EventInput
	if !decodeBody(w, r, &input) {
		return
	}
	// ids are always generated server side
	input.ID = ""

	event, err := NewEvent(input)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	added, err := h.store.Add(r.Context(), *event)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	log.Debugf("Created event %s", added.ID)
	rest.WriteJSON(w, http.StatusCreated, added.Record())
}

// GetEvents lists events. Optional query parameters: "after" (reference
// time, defaults to now) and "expand" (expand recurring events, defaults to true).
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	var after time.Time
	if afterString := r.URL.Query().Get("after"); afterString != "" {
		parsed, err := ParseTime(afterString)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid after (date) format", "'after' must be an ISO 8601 datetime")
			return
		}
		after = parsed
	}

	expand := true
	if expandString := r.URL.Query().Get("expand"); expandString != "" {
		parsed, err := strconv.ParseBool(expandString)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid expand value", "'expand' must be true or false")
			return
		}
		expand = parsed
	}

	events := h.store.List(r.Context(), after, expand)
	rest.WriteJSON(w, http.StatusOK, toRecords(events))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.store.GetByID(r.Context(), mux.Vars(r)["eventId"])
	if !ok {
		rest.WriteError(w, http.StatusNotFound, "Event not found", "")
		return
	}
	rest.WriteJSON(w, http.StatusOK, event.Record())
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch EventPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	updated, found, err := h.store.Update(r.Context(), mux.Vars(r)["eventId"], patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !found {
		rest.WriteError(w, http.StatusNotFound, "Event not found", "")
		return
	}
	rest.WriteJSON(w, http.StatusOK, updated.Record())
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Delete(r.Context(), mux.Vars(r)["eventId"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !deleted {
		rest.WriteError(w, http.StatusNotFound, "Event not found", "")
		return
	}
	rest.WriteJSON(w, http.StatusOK, deleteResponse{Message: "Event deleted successfully"})
}

func (h *Handler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		rest.WriteError(w, http.StatusBadRequest, "Query parameter is required for search.", "")
		return
	}
	rest.WriteJSON(w, http.StatusOK, toRecords(h.store.Search(r.Context(), query)))
}

// decodeBody writes a 400 response and returns false when the body is empty
// or not valid JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			rest.WriteError(w, http.StatusBadRequest, "Request must contain JSON data.", "")
		} else {
			rest.WriteError(w, http.StatusBadRequest, "Request must contain JSON data.", err.Error())
		}
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		rest.WriteError(w, http.StatusBadRequest, validationErr.Message, "")
		return
	}
	log.Errorf("unexpected error handling event request: %v", err)
	rest.WriteError(w, http.StatusInternalServerError, "An unexpected error occurred", "")
}

func toRecords(events []Event) []Record {
	records := make([]Record, 0, len(events))
	for _, e := range events {
		records = append(records, e.Record())
	}
	return records
}
