package wisefood_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisefood/wisefood_sdk_go/internal/sandbox"
	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
	"github.com/wisefood/wisefood_sdk_go/pkg/auth"
	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
	"github.com/wisefood/wisefood_sdk_go/pkg/households"
	"github.com/wisefood/wisefood_sdk_go/pkg/wisefood"
)

var demo = auth.Credentials{Username: sandbox.DemoUsername, Password: sandbox.DemoPassword}

func sandboxServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := sandbox.NewStore()
	store.Apply(sandbox.DefaultSeed())
	srv := httptest.NewServer(sandbox.New(store).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestNewAuthenticatesAndPings(t *testing.T) {
	srv := sandboxServer(t)
	c, err := wisefood.New(wisefood.Config{BaseURL: srv.URL, Credentials: demo})
	require.NoError(t, err)

	status, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status["status"])
}

func TestNewWithBareHTTPClient(t *testing.T) {
	srv := sandboxServer(t)
	c, err := wisefood.New(wisefood.Config{BaseURL: srv.URL, Credentials: demo},
		wisefood.WithHTTPClient(&http.Client{}))
	require.NoError(t, err)

	_, err = c.Ping(context.Background())
	require.NoError(t, err)
}

func TestRequestsIdentifyTheSDK(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v2/system/login" {
			_, _ = w.Write([]byte(`{"success":true,"result":{"access_token":"tok","expires_in":120}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"result":{"status":"ok"}}`))
	}))
	defer srv.Close()

	c, err := wisefood.New(wisefood.Config{BaseURL: srv.URL, APIPrefix: "v2", Credentials: demo})
	require.NoError(t, err)
	_, err = c.Ping(context.Background())
	require.NoError(t, err)

	require.Len(t, agents, 2)
	for _, ua := range agents {
		assert.Equal(t, "wisefood-sdk-go", ua)
	}
}

func TestNewWithClientCredentials(t *testing.T) {
	srv := sandboxServer(t)
	_, err := wisefood.New(wisefood.Config{
		BaseURL: srv.URL,
		Credentials: auth.Credentials{
			ClientID:     sandbox.DemoClientID,
			ClientSecret: sandbox.DemoClientSecret,
		},
	})
	require.NoError(t, err)
}

func TestNewRejectsBadCredentials(t *testing.T) {
	srv := sandboxServer(t)
	_, err := wisefood.New(wisefood.Config{
		BaseURL:     srv.URL,
		Credentials: auth.Credentials{Username: "demo", Password: "nope"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrBadCredentials))

	var authErr *auth.Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestRequestsCarryBearerAndRetry(t *testing.T) {
	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/system/login":
			w.Write([]byte(`{"success":true,"result":{"access_token":"tok-1","expires_in":120}}`))
		case "/v2/system/ping":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if pings.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"success":false,"error":{"detail":"busy"}}`))
				return
			}
			w.Write([]byte(`{"success":true,"result":{"status":"ok"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	policy := wisefood.DefaultRetryPolicy
	policy.BaseDelay = time.Millisecond
	policy.MaxDelay = 5 * time.Millisecond
	c, err := wisefood.New(wisefood.Config{BaseURL: srv.URL, APIPrefix: "v2", Credentials: demo},
		wisefood.WithRetryPolicy(policy))
	require.NoError(t, err)

	status, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, int32(3), pings.Load())
}

func TestMetricsAreRecorded(t *testing.T) {
	srv := sandboxServer(t)
	reg := prometheus.NewRegistry()
	c, err := wisefood.New(wisefood.Config{BaseURL: srv.URL, Credentials: demo}, wisefood.WithRegisterer(reg))
	require.NoError(t, err)
	_, err = c.Ping(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["wisefood_sdk_requests_total"])
	assert.True(t, names["wisefood_sdk_request_duration_seconds"])
}

func TestArticlesEndToEnd(t *testing.T) {
	ctx := context.Background()
	c, err := wisefood.NewMock("", demo)
	require.NoError(t, err)

	n, err := c.Articles.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	created, err := c.Articles.Create(ctx, "olive-oil", map[string]any{"title": "Olive oil", "tags": []string{"fats"}})
	require.NoError(t, err)
	assert.Equal(t, "urn:article:olive-oil", created.URN())
	n, _ = c.Articles.Len(ctx)
	assert.Equal(t, 3, n)

	require.NoError(t, created.SetTitle(ctx, "Extra virgin olive oil"))

	fresh, err := c.Articles.Get(ctx, "urn:article:olive-oil")
	require.NoError(t, err)
	title, err := fresh.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Extra virgin olive oil", title)

	creator, err := fresh.Get(ctx, "creator")
	require.NoError(t, err)
	assert.Equal(t, sandbox.DemoUsername, creator)
	assert.True(t, errors.Is(fresh.Set(ctx, "creator", "x"), entity.ErrReadOnlyField))

	hits, err := c.Articles.Search(ctx, entity.SearchQuery{Q: "virgin"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "urn:article:olive-oil", hits[0].URN())

	require.NoError(t, fresh.Enhance(ctx, "tagger", map[string]any{"ai_tags": []string{"oil"}}))
	aiTags, err := fresh.AITags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"oil"}, aiTags)

	require.NoError(t, fresh.Delete(ctx))
	_, err = c.Articles.Get(ctx, "olive-oil")
	assert.True(t, apierror.IsNotFound(err))
}

func TestFCTablesLookup(t *testing.T) {
	ctx := context.Background()
	c, err := wisefood.NewMock("", demo)
	require.NoError(t, err)

	table, err := c.FCTables.Lookup(ctx, "ciqual")
	require.NoError(t, err)
	inst, err := table.CompilingInstitution(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ANSES", inst)
}

func TestHouseholdFlow(t *testing.T) {
	ctx := context.Background()
	c, err := wisefood.NewMock("", demo)
	require.NoError(t, err)

	_, err = c.Households.Me(ctx)
	assert.True(t, apierror.IsNotFound(err))

	hh, err := c.Households.Create(ctx, households.HouseholdInput{
		Name:    "Home",
		Members: []households.MemberInput{{Name: "Eleni", AgeGroup: "adult"}},
	})
	require.NoError(t, err)

	me, err := c.Households.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, hh.ID(), me.ID())

	require.NoError(t, me.SetRegion(ctx, "GR"))
	again, err := c.Households.Get(ctx, hh.ID())
	require.NoError(t, err)
	region, err := again.Region(ctx)
	require.NoError(t, err)
	assert.Equal(t, "GR", region)

	nikos, err := me.AddMember(ctx, households.MemberInput{Name: "Nikos", AgeGroup: "child"})
	require.NoError(t, err)
	members, err := me.Members(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	profile, err := nikos.Profile(ctx)
	require.NoError(t, err)
	groups, err := profile.DietaryGroups()
	require.NoError(t, err)
	assert.Empty(t, groups)
	require.NoError(t, profile.SetDietaryGroups(ctx, []string{"vegetarian"}))

	reloaded, err := c.Members.Get(ctx, nikos.ID())
	require.NoError(t, err)
	rp, err := reloaded.Profile(ctx)
	require.NoError(t, err)
	groups, err = rp.DietaryGroups()
	require.NoError(t, err)
	assert.Equal(t, []string{"vegetarian"}, groups)

	_, err = c.Members.Create(ctx, households.MemberInput{Name: "Nameless"})
	assert.True(t, errors.Is(err, households.ErrInvalidInput))

	require.NoError(t, c.Households.Delete(ctx, hh.ID()))
	_, err = c.Members.Get(ctx, nikos.ID())
	assert.True(t, apierror.IsNotFound(err))
}
