package wfapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnexpectedListFormat is returned when a list endpoint replies with
// anything other than identifiers or objects carrying the identifier key.
var ErrUnexpectedListFormat = errors.New("wfapi: unexpected list endpoint format")

// ExtractResult unwraps WiseFood API responses, returning the JSON payload
// stored under the "result" field. If the body is not an object or has no
// such field the original body is returned.
func ExtractResult(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return append([]byte(nil), trimmed...), nil
	}
	result, ok := envelope["result"]
	if !ok {
		return append([]byte(nil), trimmed...), nil
	}
	return append([]byte(nil), result...), nil
}

// DecodeResult decodes the JSON payload obtained via ExtractResult into out.
// When the response body is empty, out is populated with a JSON null.
func DecodeResult(body []byte, out any) error {
	payload, err := ExtractResult(body)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return json.Unmarshal(payload, out)
}

// DecodeObject unwraps body and decodes it as a JSON object. A null or empty
// result yields an empty map.
func DecodeObject(body []byte) (map[string]any, error) {
	var out map[string]any
	if err := DecodeResult(body, &out); err != nil {
		return nil, fmt.Errorf("wfapi: decode object: %w", err)
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}

// ParseIDList normalizes list responses into identifiers. The result must be
// a list of strings, or a list of objects each holding key.
func ParseIDList(body []byte, key string) ([]string, error) {
	var items []any
	if err := DecodeResult(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedListFormat, err)
	}
	return IDsFromItems(items, key)
}

// IDsFromItems extracts identifiers from already decoded list items.
func IDsFromItems(items []any, key string) ([]string, error) {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			ids = append(ids, v)
		case map[string]any:
			id, ok := v[key].(string)
			if !ok {
				return nil, fmt.Errorf("%w: item %d has no %q", ErrUnexpectedListFormat, i, key)
			}
			ids = append(ids, id)
		default:
			return nil, fmt.Errorf("%w: item %d is %T", ErrUnexpectedListFormat, i, item)
		}
	}
	return ids, nil
}
