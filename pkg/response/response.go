package response

import (
	"bytes"
	"encoding/json"
	"net/http"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Envelope is the read side of Response. Data stays raw so the caller picks the type.
type Envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: statusCode < 400,
		Data:    data,
	})
}

func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

func Error(w http.ResponseWriter, statusCode int, err string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   http.StatusText(statusCode),
		Message: err,
	})
}

func BadRequest(w http.ResponseWriter, err string) {
	Error(w, http.StatusBadRequest, err)
}

func NotFound(w http.ResponseWriter, err string) {
	Error(w, http.StatusNotFound, err)
}

func InternalError(w http.ResponseWriter, err string) {
	Error(w, http.StatusInternalServerError, err)
}

// Decode reads a body that is either wrapped in a Response envelope or bare JSON
// and unmarshals the payload into v. The envelope is returned when one was found.
func Decode(body []byte, v interface{}) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env Envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Success != nil {
			if v != nil && len(env.Data) > 0 && string(env.Data) != "null" {
				if err := json.Unmarshal(env.Data, v); err != nil {
					return &env, err
				}
			}
			return &env, nil
		}
	}

	if v == nil || len(trimmed) == 0 {
		return nil, nil
	}
	return nil, json.Unmarshal(trimmed, v)
}

// ErrorMessage returns the "message" field of an error body, or "" when the body
// carries none. The "error" field holds the HTTP status text and is not shown.
func ErrorMessage(body []byte) string {
	var fields struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &fields); err != nil {
		return ""
	}
	return fields.Message
}
