package entity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wisefood/wisefood_sdk_go/internal/wfapi"
)

// SearchQuery is the body of a structured search request.
type SearchQuery struct {
	Q       string   `json:"q"`
	Fields  []string `json:"fields,omitempty"`
	Filters []string `json:"fq,omitempty"`
	Sort    string   `json:"sort,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`

	Highlight     bool   `json:"highlight,omitempty"`
	HighlightPre  string `json:"highlight_pre_tag,omitempty"`
	HighlightPost string `json:"highlight_post_tag,omitempty"`
}

// Search runs a structured query against {endpoint}/search. Items returned as
// objects are wrapped directly; bare identifiers are fetched one by one. The
// identifier cache is not consulted.
func (c *Collection[T]) Search(ctx context.Context, query SearchQuery) ([]T, error) {
	body, err := c.tr.Post(ctx, c.schema.Endpoint+"/search", query)
	if err != nil {
		return nil, err
	}
	items, err := searchItems(body)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case map[string]any:
			out = append(out, c.Wrap(v))
		case string:
			resolved, err := c.Get(ctx, v)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved)
		default:
			return nil, fmt.Errorf("%w: search item %d is %T", ErrUnexpectedListFormat, i, item)
		}
	}
	return out, nil
}

// searchItems accepts either a bare list or an object with a "results" list.
func searchItems(body []byte) ([]any, error) {
	payload, err := wfapi.ExtractResult(body)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	var items []any
	if err := json.Unmarshal(payload, &items); err == nil {
		return items, nil
	}
	var page struct {
		Results []any `json:"results"`
	}
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedListFormat, err)
	}
	return page.Results, nil
}
