package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sungwon/email-gateway/internal/history"
	"github.com/sungwon/email-gateway/internal/logger"
	"github.com/sungwon/email-gateway/internal/metrics"
	"github.com/sungwon/email-gateway/internal/msgstore"
)

const maxHistoryLimit = 500

// ListHistoryHandler handles GET /api/email/history.
// Query param limit (default 50, max 500). Entries are newest first and
// carry no status; resolve each messageId for that.
func ListHistoryHandler(store history.Store, failures failureWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			respondError(w, http.StatusNotFound, errHistoryDisabled.Error())
			return
		}

		limit := history.DefaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxHistoryLimit {
				respondValidationErrors(w, []string{"limit must be an integer between 1 and 500"})
				return
			}
			limit = n
		}

		entries, err := store.List(r.Context(), limit)
		if err != nil {
			metrics.HistoryErrorsTotal.WithLabelValues("list").Inc()
			failures.write(w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, entries)
	}
}

type historyDetail struct {
	history.Entry
	Message json.RawMessage `json:"message,omitempty"`
}

// GetHistoryHandler handles GET /api/email/history/{messageId}.
// The archived provider message is attached when archive is non-nil and
// holds a copy; a missing or unreadable copy only omits the field.
func GetHistoryHandler(store history.Store, archive msgstore.Store, failures failureWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			respondError(w, http.StatusNotFound, errHistoryDisabled.Error())
			return
		}

		entry, err := store.Get(r.Context(), chi.URLParam(r, "messageId"))
		if errors.Is(err, history.ErrNotFound) {
			respondError(w, http.StatusNotFound, errHistoryNotFound.Error())
			return
		}
		if err != nil {
			metrics.HistoryErrorsTotal.WithLabelValues("get").Inc()
			failures.write(w, r, err)
			return
		}

		detail := historyDetail{Entry: *entry}
		if archive != nil {
			data, err := archive.Get(r.Context(), entry.ID)
			switch {
			case err == nil:
				detail.Message = data
			case !errors.Is(err, msgstore.ErrNotFound):
				metrics.ArchiveErrorsTotal.Inc()
				log := logger.FromContext(r.Context())
				log.Warn().Err(err).Str("operation_id", entry.ID).Msg("failed to read archived message")
			}
		}

		respondJSON(w, http.StatusOK, detail)
	}
}

// ClearHistoryHandler handles DELETE /api/email/history.
func ClearHistoryHandler(store history.Store, failures failureWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			respondError(w, http.StatusNotFound, errHistoryDisabled.Error())
			return
		}

		if err := store.Clear(r.Context()); err != nil {
			metrics.HistoryErrorsTotal.WithLabelValues("clear").Inc()
			failures.write(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
