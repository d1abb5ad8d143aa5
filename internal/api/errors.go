package api

import (
	"fmt"
	"strconv"
	"strings"
)

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Status > 0 {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return "api error"
}

// FormatInternalMessage renders the stable diagnostic carried in internalMessage.
func FormatInternalMessage(code string, errorCode int) string {
	if errorCode <= 0 {
		return code
	}
	return fmt.Sprintf("%s (%d)", code, errorCode)
}

// ParseInternalMessage is the inverse of FormatInternalMessage.
func ParseInternalMessage(message string) (string, int) {
	message = strings.TrimSpace(message)
	open := strings.LastIndex(message, " (")
	if open < 0 || !strings.HasSuffix(message, ")") {
		return message, 0
	}
	numeric, err := strconv.Atoi(message[open+2 : len(message)-1])
	if err != nil {
		return message, 0
	}
	return message[:open], numeric
}
