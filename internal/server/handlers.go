package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"postboard/internal/api"
	"postboard/internal/blobstore"
	"postboard/internal/models"
)

const (
	defaultJSONMaxBody  = 1 << 20 // 1 MiB
	internalUserMessage = "internal error"
)

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.message != "" {
		message = apiErr.message
	}

	fields := []any{"status", status, "code", code, "error_code", numericCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		if id := requestIDFromContext(r.Context()); id != "" {
			fields = append(fields, "request_id", id)
		}
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = internalUserMessage
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: api.ErrorBody{
		UserMessage:     message,
		InternalMessage: api.FormatInternalMessage(code, numericCode),
	}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
	// message replaces err.Error() in the response; err is still logged.
	message string
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

// rejectInput reports a 400 with a fixed message, keeping the decoder error for the log.
func rejectInput(err error, code int, message string) error {
	if err == nil {
		err = errors.New(message)
	}
	return apiError{status: http.StatusBadRequest, code: "invalid_argument", errCode: code, err: err, message: message}
}

func badRequest(err error) error {
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeStoreFailure, err)
}

func blobFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeBlobFailure, err)
}

// validationFailure maps a field-level validation error onto its numeric code.
func validationFailure(err error) error {
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		return badRequest(err)
	}
	switch verr.Field {
	case "title":
		return badRequestCode(err, ErrCodeInvalidTitle)
	case "body":
		return badRequestCode(err, ErrCodeInvalidBody)
	case "delta", "direction":
		return badRequestCode(err, ErrCodeInvalidDirection)
	default:
		return badRequest(err)
	}
}

// classifyStoreError keeps validation failures as 400 and reports the rest as store failures.
func classifyStoreError(err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return validationFailure(err)
	}
	return storeFailure(err)
}

func classifyBlobError(err error, key string) error {
	if errors.Is(err, blobstore.ErrNotFound) {
		return notFoundCode(fmt.Errorf("image %s not found", key), ErrCodeImageNotFound)
	}
	return blobFailure(err)
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func shouldWarnClientError(status int) bool {
	return status == http.StatusTooManyRequests
}

// errTrailingJSON marks a body with more than one JSON value.
var errTrailingJSON = errors.New("unexpected data after JSON value")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = defaultJSONMaxBody
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	var extra json.RawMessage
	switch err := dec.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return errTrailingJSON
	default:
		return fmt.Errorf("%w: %w", errTrailingJSON, err)
	}
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return rejectInput(err, ErrCodeRequestTooLarge, "request body too large")
	}

	var base64Err base64.CorruptInputError
	if errors.As(err, &base64Err) {
		return rejectInput(err, ErrCodeInvalidImage, "image must be base64 encoded")
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Field {
		case "image":
			return rejectInput(err, ErrCodeInvalidImage, "image must be base64 encoded")
		case "title", "body", "author", "direction":
			return rejectInput(err, ErrCodeInvalidJSON, typeErr.Field+" must be a string")
		}
	}

	return rejectInput(err, ErrCodeInvalidJSON, "invalid JSON payload")
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst, defaultJSONMaxBody); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorReq(w, r, httpStatusFromError(err), err)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(err))
}

func (s *Server) withLimiter(w http.ResponseWriter, r *http.Request, limiter chan struct{}, name string, fn func()) {
	if !s.acquireLimiter(limiter, w, r, name) {
		return
	}
	defer s.releaseLimiter(limiter)
	fn()
}

func (s *Server) pathIDOrBadRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := requirePathID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return 0, false
	}
	return id, true
}

func requirePathID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequestCode(fmt.Errorf("invalid post id %q", raw), ErrCodeInvalidID)
	}
	return id, nil
}
