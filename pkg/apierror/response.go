package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// FromResponse builds an *Error from a failed response.
//
// The expected failure envelope is:
//
//	{"success": false, "error": {"title": ..., "detail": ..., "code": ..., "errors": [...]}, "help": "..."}
//
// Bodies that are not JSON, or JSON without the envelope, are still classified
// by status.
func FromResponse(status int, body []byte) *Error {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		detail := strings.TrimSpace(string(body))
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", status)
		}
		return &Error{Kind: kindFor(status, ""), StatusCode: status, Detail: detail}
	}

	m, _ := payload.(map[string]any)
	helpURL, _ := m["help"].(string)
	block, hasBlock := m["error"].(map[string]any)
	success, hasSuccess := m["success"].(bool)

	if !hasSuccess || success || !hasBlock {
		e := &Error{
			Kind:       kindFor(status, ""),
			StatusCode: status,
			HelpURL:    helpURL,
			Body:       payload,
		}
		if detail, ok := m["detail"]; ok {
			e.Detail = FormatDetail(detail)
			if _, isList := detail.([]any); isList {
				e.Errors = detail
			}
			e.Extra = without(m, "detail")
		} else {
			e.Detail = string(body)
		}
		return e
	}

	title, _ := block["title"].(string)
	code, _ := block["code"].(string)
	detail, _ := block["detail"].(string)
	nested := block["errors"]

	if status == http.StatusUnprocessableEntity && nested != nil {
		if formatted := FormatDetail(nested); formatted != "" {
			if detail != "" {
				detail = detail + ": " + formatted
			} else {
				detail = formatted
			}
		}
	}

	return &Error{
		Kind:       kindFor(status, code),
		StatusCode: status,
		Detail:     detail,
		Code:       code,
		Title:      title,
		Errors:     nested,
		Extra:      without(block, "title", "detail", "code", "errors"),
		HelpURL:    helpURL,
		Body:       payload,
	}
}

// Check inspects a completed response and returns an error when the API
// signals failure, either through the status or through "success": false in
// an otherwise successful response.
func Check(status int, body []byte) error {
	if status >= 400 {
		return FromResponse(status, body)
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil
	}
	if success, ok := m["success"].(bool); ok && !success {
		return FromResponse(status, body)
	}
	return nil
}

// FormatDetail renders validation detail lists as "loc.path: msg" entries
// joined by "; ". Strings are returned unchanged.
func FormatDetail(detail any) string {
	switch v := detail.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		var result *multierror.Error
		for _, item := range v {
			result = multierror.Append(result, errors.New(formatItem(item)))
		}
		if result == nil {
			return ""
		}
		result.ErrorFormat = joinErrors
		return result.Error()
	default:
		return fmt.Sprint(v)
	}
}

func formatItem(item any) string {
	m, ok := item.(map[string]any)
	if !ok {
		return fmt.Sprint(item)
	}
	var loc []string
	if parts, ok := m["loc"].([]any); ok {
		for _, p := range parts {
			loc = append(loc, fmt.Sprint(p))
		}
	}
	msg, _ := m["msg"].(string)
	if msg == "" {
		msg, _ = m["message"].(string)
	}
	if msg == "" {
		msg = fmt.Sprint(m)
	}
	if len(loc) == 0 {
		return msg
	}
	return strings.Join(loc, ".") + ": " + msg
}

func joinErrors(es []error) string {
	parts := make([]string, 0, len(es))
	for _, err := range es {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func without(m map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
