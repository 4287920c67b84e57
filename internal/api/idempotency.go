package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/punchamoorthee/bloodbank/internal/idempotency"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// replayable runs a POST at most once per Idempotency-Key. A repeated key
// with the same payload gets the stored response back; 5xx outcomes are not
// stored so the client may retry them. Requests without the header run
// normally.
func (h *Handler) replayable(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, body []byte) (int, interface{})) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large", Code: "body_too_large"})
			return
		}
		respondWithError(w, http.StatusBadRequest, "Stream read error")
		return
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		status, payload := run(r.Context(), body)
		respondWithJSON(w, status, payload)
		return
	}

	ctx := r.Context()
	rec, err := h.idem.Reserve(ctx, key, idempotency.HashRequest(r.Method, r.URL.Path, body))
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	if rec != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.ResponseStatus)
		w.Write(rec.ResponseBody)
		return
	}

	status, payload := run(ctx, body)
	if status >= http.StatusInternalServerError {
		if err := h.idem.Release(context.WithoutCancel(ctx), key); err != nil {
			h.log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
		}
		respondWithJSON(w, status, payload)
		return
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	encoded = append(encoded, '\n')
	if err := h.idem.Complete(context.WithoutCancel(ctx), key, status, encoded); err != nil {
		h.log.Warn("failed to store idempotent response", zap.String("key", key), zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(encoded)
}
