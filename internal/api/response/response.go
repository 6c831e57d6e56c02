package response

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// ProblemResponse is an error with field-level details.
type ProblemResponse struct {
	Error    string `json:"error"`
	Problems any    `json:"problems,omitempty"`
}

// WriteProblems writes an error body listing each problem.
func WriteProblems(w http.ResponseWriter, status int, message string, problems any) {
	WriteJSON(w, status, ProblemResponse{
		Error:    message,
		Problems: problems,
	})
}
