// Package idempotency remembers the response to a POST made with an
// Idempotency-Key so that a retried request is answered, not re-executed.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	ErrInProgress = errors.New("request with this idempotency key is in progress")
	ErrMismatch   = errors.New("idempotency key reused with a different payload")
)

// TTL is how long a key and its stored response are kept.
const TTL = 24 * time.Hour

const (
	statusProcessing = "processing"
	statusCompleted  = "completed"
)

type Record struct {
	Status         string `json:"status"`
	RequestHash    string `json:"request_hash"`
	ResponseStatus int    `json:"response_status,omitempty"`
	ResponseBody   []byte `json:"response_body,omitempty"`
}

// Store reserves keys and keeps completed responses.
//
// Reserve returns (nil, nil) when the caller now owns the key and must
// execute the request, a completed Record to replay, ErrInProgress while
// another request holds the key, or ErrMismatch when the key was used for a
// different payload.
type Store interface {
	Reserve(ctx context.Context, key, requestHash string) (*Record, error)
	Complete(ctx context.Context, key string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

// HashRequest fingerprints the request payload stored alongside a key.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// resolve decides what an existing record means for a new request.
func resolve(rec Record, requestHash string) (*Record, error) {
	if rec.RequestHash != requestHash {
		return nil, ErrMismatch
	}
	if rec.Status != statusCompleted {
		return nil, ErrInProgress
	}
	return &rec, nil
}
