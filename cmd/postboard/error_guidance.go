package main

import (
	"context"
	"errors"
	"net"

	"postboard/internal/api"
)

// Numeric codes the server reports for oversized uploads.
const (
	errCodeRequestTooLarge = 1002
	errCodeImageTooLarge   = 1010
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "resource_exhausted":
			lines = append(lines, "hint: too many uploads in flight; retry shortly.")
		case "invalid_argument":
			if apiErr.ErrorCode == errCodeImageTooLarge || apiErr.ErrorCode == errCodeRequestTooLarge {
				lines = append(lines, "hint: check the server's images.max_upload_bytes setting (postboard info).")
			}
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify POSTBOARD_API_URL points to a postboard server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase POSTBOARD_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a postboard server is running at POSTBOARD_API_URL.",
			"hint: start local server manually with: postboard srv",
			"hint: you can increase POSTBOARD_HTTP_TIMEOUT for slower environments.",
		)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
