package response

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/session"
)

type Envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RedirectBody carries what a browser would have seen on the landing page.
type RedirectBody struct {
	RedirectTo string            `json:"redirect_to"`
	Messages   []session.Message `json:"messages"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, Envelope{Success: status < http.StatusBadRequest, Data: data})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	write(w, r, status, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// Redirect answers with 303 See Other so clients re-issue the follow-up as GET.
func Redirect(w http.ResponseWriter, r *http.Request, location string, messages []session.Message) {
	if messages == nil {
		messages = []session.Message{}
	}
	w.Header().Set("Location", location)
	write(w, r, http.StatusSeeOther, Envelope{
		Success: true,
		Data:    RedirectBody{RedirectTo: location, Messages: messages},
	})
}

func write(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	env.RequestID = chimiddleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
