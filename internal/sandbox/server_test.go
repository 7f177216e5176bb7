package sandbox

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := NewStore()
	store.Apply(DefaultSeed())
	srv := httptest.NewServer(New(store, opts...).Handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv}
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   struct {
		Title  string       `json:"title"`
		Detail string       `json:"detail"`
		Code   string       `json:"code"`
		Errors []fieldError `json:"errors"`
	} `json:"error"`
	Help string `json:"help"`
}

func (h *harness) do(method, path string, body any) (int, envelope) {
	h.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+DefaultPrefix+"/"+path, rdr)
	require.NoError(h.t, err)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (h *harness) login() {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "system/login", map[string]string{"username": DemoUsername, "password": DemoPassword})
	require.Equal(h.t, http.StatusOK, status)
	var res struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(h.t, json.Unmarshal(env.Result, &res))
	require.NotEmpty(h.t, res.Token)
	assert.Equal(h.t, 3600, res.ExpiresIn)
	h.token = res.Token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestLoginAndAuthentication(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(http.MethodPost, "system/login", map[string]string{"username": "demo", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)
	assert.Equal(t, "auth/unauthorized", env.Error.Code)
	assert.Equal(t, helpURL, env.Help)

	status, _ = h.do(http.MethodGet, "articles", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = h.do(http.MethodPost, "system/mtm", map[string]string{"client_id": DemoClientID, "client_secret": DemoClientSecret})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, env = h.do(http.MethodGet, "system/ping", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", decode[map[string]any](t, env.Result)["status"])

	h.login()
	status, _ = h.do(http.MethodGet, "articles", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCatalogCRUD(t *testing.T) {
	h := newHarness(t)
	h.login()

	status, env := h.do(http.MethodPost, "articles", map[string]any{"urn": "olive-oil", "title": "Olive oil", "creator": "forged"})
	require.Equal(t, http.StatusCreated, status)
	created := decode[map[string]any](t, env.Result)
	assert.Equal(t, "urn:article:olive-oil", created["urn"])
	assert.Equal(t, DemoUsername, created["creator"])
	assert.NotEmpty(t, created["id"])

	status, env = h.do(http.MethodPost, "articles", map[string]any{"urn": "urn:article:olive-oil"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "resource/conflict", env.Error.Code)

	status, env = h.do(http.MethodPost, "articles", map[string]any{"title": "no urn"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, []string{"body", "urn"}, env.Error.Errors[0].Loc)

	status, env = h.do(http.MethodGet, "articles?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"urn:article:food-waste", "urn:article:olive-oil"}, decode[[]string](t, env.Result))

	status, env = h.do(http.MethodPatch, "articles/olive-oil", map[string]any{"title": "Extra virgin", "urn": "urn:article:other"})
	require.Equal(t, http.StatusOK, status)
	patched := decode[map[string]any](t, env.Result)
	assert.Equal(t, "Extra virgin", patched["title"])
	assert.Equal(t, "urn:article:olive-oil", patched["urn"])

	status, _ = h.do(http.MethodDelete, "articles/olive-oil", nil)
	assert.Equal(t, http.StatusOK, status)
	status, env = h.do(http.MethodGet, "articles/olive-oil", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "resource/not_found", env.Error.Code)

	status, _ = h.do(http.MethodGet, "articles?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSearchAndEnhance(t *testing.T) {
	h := newHarness(t)
	h.login()

	status, env := h.do(http.MethodPost, "articles/search", map[string]any{"q": "CARDIO"})
	require.Equal(t, http.StatusOK, status)
	res := decode[struct {
		Results []map[string]any `json:"results"`
		Total   int              `json:"total"`
	}](t, env.Result)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "urn:article:mediterranean-diet", res.Results[0]["urn"])

	status, env = h.do(http.MethodPost, "articles/search", map[string]any{"q": "", "sort": "title desc"})
	require.Equal(t, http.StatusOK, status)
	res = decode[struct {
		Results []map[string]any `json:"results"`
		Total   int              `json:"total"`
	}](t, env.Result)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "urn:article:mediterranean-diet", res.Results[0]["urn"])

	status, env = h.do(http.MethodPost, "articles/food-waste/enhance", map[string]any{"agent": "tagger", "ai_tags": []string{"waste"}})
	require.Equal(t, http.StatusOK, status)
	enhanced := decode[map[string]any](t, env.Result)
	assert.Equal(t, []any{"waste"}, enhanced["ai_tags"])
	assert.Equal(t, "tagger", enhanced["enhanced_by"])

	status, _ = h.do(http.MethodPost, "articles/food-waste/enhance", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = h.do(http.MethodPost, "fctables/ciqual/enhance", map[string]any{"agent": "x"})
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, status)
}

func TestHouseholdsMembersProfiles(t *testing.T) {
	h := newHarness(t)
	h.login()

	status, _ := h.do(http.MethodGet, "households/me", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env := h.do(http.MethodPost, "households", map[string]any{
		"name":    "Home",
		"members": []map[string]any{{"name": "Eleni", "age_group": "adult"}},
	})
	require.Equal(t, http.StatusCreated, status)
	hh := decode[map[string]any](t, env.Result)
	hid := hh["id"].(string)
	assert.Equal(t, DemoUsername, hh["owner_id"])

	status, env = h.do(http.MethodGet, "households/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, hid, decode[map[string]any](t, env.Result)["id"])

	status, env = h.do(http.MethodGet, "households/"+hid+"/members", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, decode[[]map[string]any](t, env.Result), 1)

	status, env = h.do(http.MethodPost, "members", map[string]any{"household_id": hid})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Len(t, env.Error.Errors, 2)

	status, env = h.do(http.MethodPost, "members", map[string]any{"household_id": hid, "name": "Nikos", "age_group": "child"})
	require.Equal(t, http.StatusCreated, status)
	mid := decode[map[string]any](t, env.Result)["id"].(string)

	status, env = h.do(http.MethodGet, "members?household_id="+hid, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, env.Result), 2)

	status, _ = h.do(http.MethodGet, "members/"+mid+"/profile", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = h.do(http.MethodPatch, "members/"+mid+"/profile", map[string]any{"dietary_groups": []string{"vegan"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"vegan"}, decode[map[string]any](t, env.Result)["dietary_groups"])

	status, _ = h.do(http.MethodDelete, "households/"+hid, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodGet, "members/"+mid, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFailureInjection(t *testing.T) {
	store := NewStore()
	srv := New(store, WithFailures(FailConfig{Rate: 0.5, Code: http.StatusServiceUnavailable}))
	rolls := []float64{0.1, 0.9}
	srv.chance = func() float64 {
		v := rolls[0]
		rolls = rolls[1:]
		return v
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + DefaultPrefix + "/system/ping")
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "upstream/unavailable", env.Error.Code)

	resp, err = http.Get(ts.URL + DefaultPrefix + "/system/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestParseFailConfig(t *testing.T) {
	cases := []struct {
		raw     string
		want    FailConfig
		wantErr bool
	}{
		{raw: "", want: FailConfig{}},
		{raw: "rate=0.25", want: FailConfig{Rate: 0.25, Code: 500}},
		{raw: "rate=1, code=429", want: FailConfig{Rate: 1, Code: 429}},
		{raw: "rate", wantErr: true},
		{raw: "speed=2", wantErr: true},
		{raw: "code=abc", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseFailConfig(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}
