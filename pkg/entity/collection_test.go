package entity_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
)

func articleBody(slug, title string) string {
	return fmt.Sprintf(`{"result":{"urn":"urn:article:%s","title":%q}}`, slug, title)
}

func listBody(slugs ...string) string {
	quoted := make([]string, len(slugs))
	for i, s := range slugs {
		quoted[i] = fmt.Sprintf("%q", "urn:article:"+s)
	}
	return `{"result":[` + strings.Join(quoted, ",") + `]}`
}

func newArticles(tr entity.Transport) *entity.Collection[*entity.Entity] {
	return entity.NewCollection(tr, articleSchema(), identity)
}

func TestCollectionLenIterAndIndex(t *testing.T) {
	ctx := context.Background()
	tr := newFake().
		On(http.MethodGet, "articles", listBody("a", "b", "c")).
		On(http.MethodGet, "articles/urn:article:a", articleBody("a", "A")).
		On(http.MethodGet, "articles/urn:article:b", articleBody("b", "B")).
		On(http.MethodGet, "articles/urn:article:c", articleBody("c", "C"))
	col := newArticles(tr)
	assert.False(t, col.Loaded())

	n, err := col.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, tr.Calls(), 1)
	assert.Equal(t, "100", tr.Calls()[0].Query.Get("limit"))
	assert.Equal(t, "0", tr.Calls()[0].Query.Get("offset"))

	var titles []string
	for e, err := range col.All(ctx) {
		require.NoError(t, err)
		title, _ := e.Get(ctx, "title")
		titles = append(titles, title.(string))
	}
	assert.Equal(t, []string{"A", "B", "C"}, titles)

	last, err := col.At(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, "urn:article:c", last.URN())

	_, err = col.At(ctx, 3)
	assert.True(t, errors.Is(err, entity.ErrIndexOutOfRange))

	// One list call only; everything else hit the cache.
	listCalls := 0
	for _, c := range tr.Calls() {
		if c.Path == "articles" {
			listCalls++
		}
	}
	assert.Equal(t, 1, listCalls)
}

func TestCollectionEmptyIsLoaded(t *testing.T) {
	tr := newFake().On(http.MethodGet, "articles", `{"result":[]}`)
	col := newArticles(tr)

	n, err := col.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, col.Loaded())

	_, err = col.Len(context.Background())
	require.NoError(t, err)
	assert.Len(t, tr.Calls(), 1)
}

func TestCollectionAcceptsObjectLists(t *testing.T) {
	tr := newFake().On(http.MethodGet, "articles", `{"result":[{"urn":"urn:article:a","title":"A"},{"urn":"urn:article:b"}]}`)
	ids, err := newArticles(tr).IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:article:a", "urn:article:b"}, ids)
}

func TestCollectionRejectsUnknownListFormat(t *testing.T) {
	tr := newFake().On(http.MethodGet, "articles", `{"result":{"count":2}}`)
	_, err := newArticles(tr).Len(context.Background())
	assert.True(t, errors.Is(err, entity.ErrUnexpectedListFormat))
}

func TestSliceValidationHappensBeforeAnyCall(t *testing.T) {
	ctx := context.Background()
	tr := newFake()
	col := newArticles(tr)

	stop := 10
	_, err := col.Slice(ctx, entity.Range{Start: 0, Stop: &stop, Step: 2})
	assert.True(t, errors.Is(err, entity.ErrUnsupportedStep))
	assert.True(t, errors.Is(err, apierror.KindLocal))
	assert.False(t, apierror.IsRetryable(err))

	_, err = col.Slice(ctx, entity.Range{Start: 5})
	assert.True(t, errors.Is(err, entity.ErrOpenRange))

	_, err = col.Slice(ctx, entity.Span(-1, 3))
	assert.True(t, errors.Is(err, entity.ErrNegativeRange))

	empty, err := col.Slice(ctx, entity.Span(4, 4))
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Empty(t, tr.Calls())
}

func TestSliceReturnsLazyEntities(t *testing.T) {
	ctx := context.Background()
	tr := newFake().On(http.MethodGet, "articles", listBody("b", "c"))
	col := newArticles(tr)

	items, err := col.Slice(ctx, entity.Span(1, 3))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2", tr.Last().Query.Get("limit"))
	assert.Equal(t, "1", tr.Last().Query.Get("offset"))

	for _, e := range items {
		assert.True(t, e.IsLazy())
	}
	assert.Equal(t, "urn:article:b", items[0].URN())
	assert.False(t, col.Loaded(), "slices do not populate the cache")
	assert.Len(t, tr.Calls(), 1)
}

func TestLookupByURNSlugAndFallthrough(t *testing.T) {
	ctx := context.Background()
	tr := newFake().
		On(http.MethodGet, "articles", listBody("alpha", "beta")).
		On(http.MethodGet, "articles/urn:article:alpha", articleBody("alpha", "Alpha")).
		On(http.MethodGet, "articles/urn:article:beta", articleBody("beta", "Beta")).
		On(http.MethodGet, "articles/urn:article:gamma", articleBody("gamma", "Gamma"))
	col := newArticles(tr)

	alpha, err := col.Lookup(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "urn:article:alpha", alpha.URN())

	beta, err := col.Lookup(ctx, "urn:article:beta")
	require.NoError(t, err)
	assert.Equal(t, "urn:article:beta", beta.URN())

	gamma, err := col.Lookup(ctx, "gamma")
	require.NoError(t, err)
	assert.Equal(t, "urn:article:gamma", gamma.URN())
	assert.Equal(t, "articles/urn:article:gamma", tr.Last().Path)

	_, err = col.Lookup(ctx, "delta")
	assert.True(t, apierror.IsNotFound(err))
	assert.Equal(t, "articles/urn:article:delta", tr.Last().Path)
}

func TestMatchAlwaysReturnsList(t *testing.T) {
	ctx := context.Background()
	tr := newFake().
		On(http.MethodGet, "articles", listBody("alpha", "beta", "alphabet")).
		On(http.MethodGet, "articles/urn:article:alpha", articleBody("alpha", "Alpha")).
		On(http.MethodGet, "articles/urn:article:alphabet", articleBody("alphabet", "Alphabet")).
		On(http.MethodGet, "articles/urn:article:beta", articleBody("beta", "Beta"))
	col := newArticles(tr)

	many, err := col.Match(ctx, "ALPH")
	require.NoError(t, err)
	assert.Len(t, many, 2)

	one, err := col.Match(ctx, "eta")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "urn:article:beta", one[0].URN())

	_, err = col.Match(ctx, "zzz")
	assert.True(t, apierror.IsNotFound(err))
}

func TestSlugs(t *testing.T) {
	tr := newFake().On(http.MethodGet, "articles", listBody("first", "second"))
	slugs, err := newArticles(tr).Slugs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, slugs)
}

func TestCreateAppendsToLoadedCacheOnce(t *testing.T) {
	ctx := context.Background()
	tr := newFake().
		On(http.MethodGet, "articles", listBody("existing")).
		On(http.MethodPost, "articles", articleBody("new", "New"))
	col := newArticles(tr)
	_, err := col.Len(ctx)
	require.NoError(t, err)

	created, err := col.Create(ctx, "new", map[string]any{"title": "New"})
	require.NoError(t, err)
	assert.Equal(t, "urn:article:new", created.URN())
	assert.JSONEq(t, `{"urn":"urn:article:new","title":"New"}`, tr.Last().Body)

	ids, err := col.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:article:existing", "urn:article:new"}, ids)
}

func TestCreateLeavesUnloadedCacheUnloaded(t *testing.T) {
	ctx := context.Background()
	tr := newFake().On(http.MethodPost, "articles", articleBody("new", "New"))
	col := newArticles(tr)

	_, err := col.Create(ctx, "new", map[string]any{"title": "New"})
	require.NoError(t, err)
	assert.False(t, col.Loaded())
	assert.Len(t, tr.Calls(), 1)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	tr := newFake().
		On(http.MethodPost, "articles/search", `{"result":{"results":[{"urn":"urn:article:a","title":"A"},"urn:article:b"]}}`).
		On(http.MethodGet, "articles/urn:article:b", articleBody("b", "B"))
	col := newArticles(tr)

	results, err := col.Search(ctx, entity.SearchQuery{
		Q:             "olive oil",
		Fields:        []string{"title"},
		Filters:       []string{"region:EU"},
		Sort:          "created_at desc",
		Limit:         5,
		Highlight:     true,
		HighlightPre:  "<b>",
		HighlightPost: "</b>",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].IsLazy())
	assert.Equal(t, "urn:article:b", results[1].URN())

	assert.JSONEq(t, `{"q":"olive oil","fields":["title"],"fq":["region:EU"],"sort":"created_at desc","limit":5,
		"highlight":true,"highlight_pre_tag":"<b>","highlight_post_tag":"</b>"}`, tr.Calls()[0].Body)
	assert.Equal(t, 1, tr.Count(http.MethodGet), "only the bare identifier is fetched")
	assert.False(t, col.Loaded())
}

func TestSearchAcceptsBareList(t *testing.T) {
	tr := newFake().On(http.MethodPost, "articles/search", `{"result":[{"urn":"urn:article:a"}]}`)
	results, err := newArticles(tr).Search(context.Background(), entity.SearchQuery{Q: "a"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "urn:article:a", results[0].URN())
}
