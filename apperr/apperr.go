// Package apperr defines the typed error taxonomy every HTTP handler maps
// its failures onto, and the precomputed JSON bodies written for each one.
package apperr

import (
	"encoding/json"
	"net/http"
)

// Code identifies the class of failure returned to a caller. Handlers never
// write a raw error string to the response body; they classify the failure
// into one of these and let the precomputed body carry the detail.
type Code string

const (
	Validation     Code = "validation"
	Auth           Code = "auth"
	NotFound       Code = "not_found"
	Conflict       Code = "conflict"
	DbError        Code = "db_error"
	NoRefreshToken Code = "no_refresh_token"
	SendTransient  Code = "send_transient"
	SendPermanent  Code = "send_permanent"
	Internal       Code = "internal"

	// SendError is the generic failure code for a synchronous one-shot
	// send (POST /send_email), as opposed to the retryable worker-path
	// distinction SendTransient/SendPermanent makes.
	SendError Code = "send_error"
)

// statusFor maps each code to the HTTP status written alongside it.
var statusFor = map[Code]int{
	Validation:     http.StatusBadRequest,
	Auth:           http.StatusUnauthorized,
	NotFound:       http.StatusNotFound,
	Conflict:       http.StatusConflict,
	DbError:        http.StatusInternalServerError,
	NoRefreshToken: http.StatusUnprocessableEntity,
	SendTransient:  http.StatusBadGateway,
	SendPermanent:  http.StatusUnprocessableEntity,
	Internal:       http.StatusInternalServerError,
	SendError:      http.StatusInternalServerError,
}

// body is the wire shape of every error response.
type body struct {
	Ok     bool   `json:"ok"`
	Error  Code   `json:"error"`
	Detail string `json:"detail"`
}

// Error pairs a Code with an HTTP status and a precomputed JSON body. Build
// one with New and write it with WriteJSON.
type Error struct {
	Code   Code
	Status int
	json   []byte
}

// New builds an Error carrying detail. Marshaling happens once, at call
// time, since detail is request-specific and can't be precomputed at init.
func New(code Code, detail string) *Error {
	status, ok := statusFor[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	b, _ := json.Marshal(body{Ok: false, Error: code, Detail: detail})
	return &Error{Code: code, Status: status, json: b}
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.messageOnly()
}

func (e *Error) messageOnly() string {
	var b body
	_ = json.Unmarshal(e.json, &b)
	return b.Detail
}

// WriteJSON writes the error's precomputed status and body to w.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.json)
}

// WriteJsonError builds the error for code and detail via New and writes
// its response.
func WriteJsonError(w http.ResponseWriter, code Code, detail string) {
	New(code, detail).WriteJSON(w)
}

// okBody is the wire shape of every non-error JSON response.
type okBody struct {
	Ok   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
}

// WriteJsonOk writes {"ok":true} with the given status and no payload.
func WriteJsonOk(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, _ := json.Marshal(okBody{Ok: true})
	_, _ = w.Write(b)
}

// WriteJsonWithData writes {"ok":true,"data":<data>} with the given status.
func WriteJsonWithData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, err := json.Marshal(okBody{Ok: true, Data: data})
	if err != nil {
		WriteJsonError(w, Internal, "failed to encode response")
		return
	}
	_, _ = w.Write(b)
}
