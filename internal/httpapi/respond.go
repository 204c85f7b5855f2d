package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Reasons []types.Reason `json:"reasons,omitempty"`
}

// statusFor maps stable error codes to HTTP statuses.
var statusFor = map[string]int{
	service.CodeInvalidInput:       http.StatusBadRequest,
	service.CodeBlocked:            http.StatusForbidden,
	service.CodeRejected:           http.StatusUnprocessableEntity,
	service.CodeInvalidTransition:  http.StatusConflict,
	service.CodeBadgeUnavailable:   http.StatusConflict,
	service.CodeEntryNotEligible:   http.StatusConflict,
	service.CodeAlreadyRegistered:  http.StatusConflict,
	service.CodePermissionDenied:   http.StatusForbidden,
	service.CodeNoSession:          http.StatusUnauthorized,
	service.CodeInvalidCredentials: http.StatusUnauthorized,
	service.CodeSessionActive:      http.StatusConflict,
	service.CodeLookupFailed:       http.StatusServiceUnavailable,
	service.CodeStoreError:         http.StatusServiceUnavailable,
	service.CodeNotFound:           http.StatusNotFound,
}

// decode reads a JSON or protobuf Struct body into dst.
func decode(r *http.Request, dst any) error {
	if isProtobuf(r) {
		return readProto(r, dst)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsProtobuf(r) {
		writeProto(w, status, v)
		return
	}
	writeJSON(w, status, v)
}

// fail writes err with its stable code. Rejections carry their reasons.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := service.Code(err)
	status, ok := statusFor[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := errorBody{Error: errorDetail{Code: code, Message: err.Error()}}
	if rep, ok := service.AsRejection(err); ok {
		body.Error.Reasons = rep.Reasons
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		if code == service.CodeInternal {
			body.Error.Message = "unexpected server error"
		}
	}
	s.respond(w, r, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
