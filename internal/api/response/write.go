package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response. Balances change on every settlement, so
// responses are never cached.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Settled writes the result of an idempotent settlement: 201 when it was
// applied now, 200 when an earlier request with the same key is replayed
func Settled(w http.ResponseWriter, replayed bool, data any) {
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	JSON(w, status, data)
}
