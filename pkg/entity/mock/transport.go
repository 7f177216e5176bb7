// Package mock provides a scripted entity.Transport for tests.
package mock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
)

// Call is one recorded request. Body holds the JSON encoding of the request
// body, empty when there was none.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
}

// Transport replays canned bodies keyed by method and path and records every
// call. Unscripted routes answer with a NotFound error.
type Transport struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string]string
	errs      map[string]error
}

var _ entity.Transport = (*Transport)(nil)

// New returns an empty transport.
func New() *Transport {
	return &Transport{responses: make(map[string]string), errs: make(map[string]error)}
}

func key(method, path string) string { return method + " " + path }

// On scripts the body returned for method and path.
func (t *Transport) On(method, path, body string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses[key(method, path)] = body
	return t
}

// Fail scripts an error for method and path. It takes precedence over On.
func (t *Transport) Fail(method, path string, err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs[key(method, path)] = err
	return t
}

// Calls returns a copy of the recorded calls.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

// Count returns the number of calls made with method.
func (t *Transport) Count(method string) int {
	n := 0
	for _, c := range t.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Last returns the most recent call, or the zero Call.
func (t *Transport) Last() Call {
	calls := t.Calls()
	if len(calls) == 0 {
		return Call{}
	}
	return calls[len(calls)-1]
}

func (t *Transport) do(method, path string, q url.Values, body any) ([]byte, error) {
	c := Call{Method: method, Path: path, Query: q}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, apierror.Local(err)
		}
		c.Body = string(raw)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, c)

	k := key(method, path)
	if err, ok := t.errs[k]; ok {
		return nil, err
	}
	if resp, ok := t.responses[k]; ok {
		return []byte(resp), nil
	}
	return nil, &apierror.Error{Kind: apierror.KindNotFound, StatusCode: http.StatusNotFound, Detail: k}
}

func (t *Transport) Get(_ context.Context, path string, q url.Values) ([]byte, error) {
	return t.do(http.MethodGet, path, q, nil)
}

func (t *Transport) Post(_ context.Context, path string, body any) ([]byte, error) {
	return t.do(http.MethodPost, path, nil, body)
}

func (t *Transport) Patch(_ context.Context, path string, body any) ([]byte, error) {
	return t.do(http.MethodPatch, path, nil, body)
}

func (t *Transport) Delete(_ context.Context, path string, q url.Values) ([]byte, error) {
	return t.do(http.MethodDelete, path, q, nil)
}
