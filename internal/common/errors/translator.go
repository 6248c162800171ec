package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"regexp"
	"strings"
	"syscall"
)

// User-facing messages produced by ToUserMessage.
const (
	MsgPDFNotSupported    = "Please upload an image file (JPG, PNG or WEBP) instead of a PDF."
	MsgInvalidImageFormat = "The uploaded file is not a supported image. Please upload a JPG, PNG or WEBP image."
	MsgFileNotFound       = "The uploaded file could not be found. Please upload it again."
	MsgFileAccess         = "There was a problem accessing the uploaded file. Please try again."
	MsgFileTooLarge       = "The uploaded file is too large. Please upload a smaller image."
	MsgURLNotAccessible   = "The article URL could not be accessed. Please check the link and try again."
	MsgServerError        = "The image service ran into an internal error. Please try again later."
	MsgRateLimited        = "Too many requests. Please wait a moment and try again."
	MsgServiceNotFound    = "The image service could not be reached at its configured address. Please contact support."
	MsgUnavailable        = "The image service is temporarily unavailable. Please try again in a few minutes."
	MsgTimeout            = "The image service took too long to respond. Please try again."
	MsgConnection         = "Could not connect to the image service. Please check your connection and try again."
	MsgGenerationFailed   = "Image generation failed. Please try again."
)

// passthroughLimit bounds the length of an upstream error that is shown
// verbatim.
const passthroughLimit = 100

var (
	retryablePhrases = []string{
		"econnreset",
		"connection reset",
		"enotfound",
		"no such host",
		"econnrefused",
		"connection refused",
		"etimedout",
		"timeout",
		"timed out",
		"deadline exceeded",
		"network",
		"connection",
		"temporarily unavailable",
		"service unavailable",
	}

	gatewayStatusPattern = regexp.MustCompile(`\b50[234]\b`)
	status500Pattern     = regexp.MustCompile(`\b500\b`)
	status429Pattern     = regexp.MustCompile(`\b429\b`)
	status404Pattern     = regexp.MustCompile(`\b404\b`)

	// statusSegmentPattern matches the "status NNN" the retry clients write.
	statusSegmentPattern = regexp.MustCompile(`\bstatus (\d{3})\b`)
)

// IsRetryable reports whether err looks transient: resets, DNS failures,
// refused connections, timeouts, generic network trouble and 502/503/504.
// Both the upload and the render client use it to decide whether to keep
// looping. Cancellation of the caller's context is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}

	if stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.ETIMEDOUT) ||
		stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return gatewayStatusPattern.MatchString(msg)
}

// ToUserMessage rewrites a terminal pipeline error into a short message that
// is safe to show to an end user. The render service sometimes answers with a
// stack trace that embeds a JSON object carrying an "error" field; when one
// is found, the nested text drives the translation. It never returns file
// system paths, stack frames or raw JSON.
func ToUserMessage(err error) string {
	if err == nil {
		return MsgGenerationFailed
	}
	raw := err.Error()

	if nested, ok := extractEmbeddedError(raw); ok {
		if msg, ok := translateNested(nested); ok {
			return msg
		}
	}
	return translateRaw(raw)
}

// extractEmbeddedError returns the "error" string of the first JSON object
// found inside raw.
func extractEmbeddedError(raw string) (string, bool) {
	for i := strings.IndexByte(raw, '{'); i >= 0; {
		var obj map[string]interface{}
		dec := json.NewDecoder(strings.NewReader(raw[i:]))
		if err := dec.Decode(&obj); err == nil {
			if text, ok := obj["error"].(string); ok && strings.TrimSpace(text) != "" {
				return text, true
			}
		}

		next := strings.IndexByte(raw[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return "", false
}

func translateNested(text string) (string, bool) {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "cannot identify image file") && strings.Contains(lower, ".pdf"):
		return MsgPDFNotSupported, true
	case strings.Contains(lower, "cannot identify image file"):
		return MsgInvalidImageFormat, true
	case strings.Contains(lower, "no such file or directory"):
		return MsgFileNotFound, true
	case strings.Contains(lower, "permission denied"):
		return MsgFileAccess, true
	case strings.Contains(lower, "file too large"), strings.Contains(lower, "size limit"):
		return MsgFileTooLarge, true
	case strings.Contains(lower, "invalid url"), strings.Contains(lower, "url not found"):
		return MsgURLNotAccessible, true
	}

	// Short upstream messages without server paths or links are already
	// written for humans.
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < passthroughLimit && !strings.Contains(trimmed, "/var/www") && !strings.Contains(trimmed, "http") {
		return trimmed, true
	}
	return "", false
}

// translateRaw trusts the status the client recorded over numbers that
// happen to appear in an upstream error page.
func translateRaw(raw string) string {
	lower := strings.ToLower(raw)

	if m := statusSegmentPattern.FindStringSubmatch(lower); m != nil {
		if msg, ok := statusMessage(m[1]); ok {
			return msg
		}
	}

	switch {
	case gatewayStatusPattern.MatchString(lower),
		strings.Contains(lower, "temporarily unavailable"),
		strings.Contains(lower, "service unavailable"):
		return MsgUnavailable
	case status500Pattern.MatchString(lower):
		return MsgServerError
	case status429Pattern.MatchString(lower):
		return MsgRateLimited
	case status404Pattern.MatchString(lower):
		return MsgServiceNotFound
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "deadline exceeded"):
		return MsgTimeout
	case strings.Contains(lower, "connection"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "no such host"):
		return MsgConnection
	default:
		return MsgGenerationFailed
	}
}

func statusMessage(code string) (string, bool) {
	switch code {
	case "500":
		return MsgServerError, true
	case "429":
		return MsgRateLimited, true
	case "404":
		return MsgServiceNotFound, true
	case "502", "503", "504":
		return MsgUnavailable, true
	}
	return "", false
}
