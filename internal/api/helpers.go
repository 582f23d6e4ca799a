package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/beaconwatch/beacon/internal/storage"
)

// Error taxonomy codes surfaced on the wire.
const (
	codeInvalidArgument = "INVALID_ARGUMENT"
	codeUnauthorized    = "UNAUTHORIZED"
	codeNotFound        = "NOT_FOUND"
	codeConflict        = "CONFLICT"
	codeRateLimited     = "RATE_LIMITED"
	codeInternal        = "INTERNAL"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeInvalid(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, codeInvalidArgument, message)
}

// writeStoreError maps storage errors onto the taxonomy.
func writeStoreError(w http.ResponseWriter, log func(msg string, args ...any), err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}
	log("api: store error", "error", err)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

// readJSON decodes a request body strictly: unknown fields and
// trailing garbage are rejected.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeInvalid(w, fmt.Sprintf("invalid json: %v", err))
		return false
	}
	if dec.More() {
		writeInvalid(w, "invalid json: trailing data")
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

func queryInt64(r *http.Request, key string, def int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func queryRange(r *http.Request, def string) string {
	if v := r.URL.Query().Get("range"); v != "" {
		return v
	}
	return def
}
