package adminapi

import (
	"encoding/json"
	"net/http"

	"scanbridge/pkg/problems"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem emits an RFC7807-flavoured error body.
func writeProblem(w http.ResponseWriter, slug, message string, status int) {
	writeJSON(w, map[string]any{
		"type":    problems.Type(slug),
		"status":  "error",
		"message": message,
	}, status)
}
