package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MagicGrants/donatehub"
)

func returnData(w http.ResponseWriter, retData any) {
	statusData(w, "success", retData, 200)
}

func statusData(w http.ResponseWriter, status string, retData any, statusCode int) {
	if err, ok := retData.(error); ok {
		retData = err.Error()
	}
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Data   any    `json:"data"`
	}{
		Status: status,
		Data:   retData,
	})
	if err != nil {
		slog.Error("Couldn't send return data", slog.Any("err", err))
	}
}

func errorData(w http.ResponseWriter, retData any, errCode int) {
	statusData(w, "error", retData, errCode)
}

// statusError maps a business layer error onto the response envelope using
// the status code it carries.
func statusError(w http.ResponseWriter, err error) {
	errorData(w, err, donatehub.ErrorCode(err))
}

func parseJSONBody[T any](r *http.Request, w http.ResponseWriter) (T, bool) {
	var query T
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		errorData(w, "Invalid JSON body", 400)
		return query, false
	}
	return query, true
}

type ctxKey string

const userIDKey = ctxKey("userID")

// userContext lifts the authenticated user's ID out of the header the
// upstream platform gateway sets after it validates the session.
func (s *API) userContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := strconv.Atoi(r.Header.Get("X-User-Id")); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) *int {
	if id, ok := r.Context().Value(userIDKey).(int); ok {
		return &id
	}
	return nil
}

func (s *API) mustBeAuthed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID(r) == nil {
			errorData(w, "You must be authenticated", 401)
			return
		}
		next.ServeHTTP(w, r)
	})
}
