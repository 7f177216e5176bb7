package sandbox

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// serverKeys are assigned by the sandbox and ignored in request bodies.
var serverKeys = []string{"id", "urn", "creator", "created_at", "updated_at"}

func stripServerKeys(body map[string]any) {
	for _, k := range serverKeys {
		delete(body, k)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if !s.store.checkUser(body.Username, body.Password) {
		writeError(w, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized", "invalid username or password", nil)
		return
	}
	s.writeToken(w, body.Username)
}

func (s *Server) mtm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if !s.store.checkClient(body.ClientID, body.ClientSecret) {
		writeError(w, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized", "invalid client credentials", nil)
		return
	}
	s.writeToken(w, "client:"+body.ClientID)
}

func (s *Server) writeToken(w http.ResponseWriter, subject string) {
	token := s.store.issueToken(subject, s.tokenTTL)
	writeResult(w, http.StatusOK, map[string]any{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(s.tokenTTL.Seconds()),
	})
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "wisefood-sandbox",
		"time":    s.store.timestamp(),
		"counts":  s.store.Counts(),
	})
}

// catalog serves a URN-keyed collection such as articles or fctables.
type catalog struct {
	s       *Server
	name    string
	prefix  string
	enhance bool
}

func (c *catalog) table() *table {
	if c.name == "articles" {
		return c.s.store.articles
	}
	return c.s.store.fctables
}

func (s *Server) catalogRoutes(r chi.Router, name, prefix string, enhance bool) {
	c := &catalog{s: s, name: name, prefix: prefix, enhance: enhance}
	r.Route("/"+name, func(r chi.Router) {
		r.Get("/", c.list)
		r.Post("/", c.create)
		r.Post("/search", c.search)
		r.Get("/{slug}", c.get)
		r.Patch("/{slug}", c.patch)
		r.Delete("/{slug}", c.delete)
		if enhance {
			r.Post("/{slug}/enhance", c.enhanceOne)
		}
	})
}

func (c *catalog) list(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}
	st := c.s.store
	st.mu.RLock()
	rows := c.table().list(nil)
	st.mu.RUnlock()

	urns := make([]string, 0, len(rows))
	for _, row := range rows {
		urns = append(urns, row["urn"].(string))
	}
	writeResult(w, http.StatusOK, window(urns, limit, offset))
}

func (c *catalog) get(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(chi.URLParam(r, "slug"))
	st := c.s.store
	st.mu.RLock()
	row, ok := c.table().get(slug)
	st.mu.RUnlock()
	if !ok {
		writeNotFound(w, c.prefix+slug)
		return
	}
	writeResult(w, http.StatusOK, row)
}

func (c *catalog) create(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	urn, _ := body["urn"].(string)
	slug := slugOf(urn)
	if slug == "" {
		writeValidation(w, missing("urn"))
		return
	}
	stripServerKeys(body)

	st := c.s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := c.table().get(slug); exists {
		writeError(w, http.StatusConflict, "resource/conflict", "Conflict", c.prefix+slug+" already exists", nil)
		return
	}
	ts := st.timestamp()
	body["urn"] = c.prefix + slug
	body["id"] = uuid.NewString()
	body["creator"] = subjectOf(r)
	body["created_at"] = ts
	body["updated_at"] = ts
	c.table().put(slug, body)
	writeResult(w, http.StatusCreated, body)
}

func (c *catalog) patch(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(chi.URLParam(r, "slug"))
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	stripServerKeys(body)
	c.merge(w, slug, body)
}

func (c *catalog) merge(w http.ResponseWriter, slug string, fields map[string]any) {
	st := c.s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	row, ok := c.table().get(slug)
	if !ok {
		writeNotFound(w, c.prefix+slug)
		return
	}
	for k, v := range fields {
		row[k] = v
	}
	row["updated_at"] = st.timestamp()
	c.table().put(slug, row)
	writeResult(w, http.StatusOK, row)
}

func (c *catalog) delete(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(chi.URLParam(r, "slug"))
	st := c.s.store
	st.mu.Lock()
	ok := c.table().delete(slug)
	st.mu.Unlock()
	if !ok {
		writeNotFound(w, c.prefix+slug)
		return
	}
	writeResult(w, http.StatusOK, nil)
}

func (c *catalog) enhanceOne(w http.ResponseWriter, r *http.Request) {
	slug := slugOf(chi.URLParam(r, "slug"))
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	agent, _ := body["agent"].(string)
	if agent == "" {
		writeValidation(w, missing("agent"))
		return
	}
	delete(body, "agent")
	stripServerKeys(body)
	body["enhanced_by"] = agent
	c.merge(w, slug, body)
}

type searchRequest struct {
	Q       string   `json:"q"`
	Fields  []string `json:"fields"`
	Filters []string `json:"fq"`
	Sort    string   `json:"sort"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

var defaultSearchFields = []string{"title", "description", "abstract", "tags"}

func (c *catalog) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Offset < 0 {
		writeError(w, http.StatusBadRequest, "request/invalid", "Bad Request", "offset must be non-negative", nil)
		return
	}
	fields := req.Fields
	if len(fields) == 0 {
		fields = defaultSearchFields
	}
	q := strings.ToLower(strings.TrimSpace(req.Q))

	st := c.s.store
	st.mu.RLock()
	hits := c.table().list(func(row map[string]any) bool {
		return matchesFilters(row, req.Filters) && (q == "" || matchesQuery(row, fields, q))
	})
	st.mu.RUnlock()

	if req.Sort != "" {
		sortRows(hits, req.Sort)
	}
	writeResult(w, http.StatusOK, map[string]any{
		"results": window(hits, req.Limit, req.Offset),
		"total":   len(hits),
	})
}

func matchesQuery(row map[string]any, fields []string, q string) bool {
	for _, f := range fields {
		switch v := row[f].(type) {
		case string:
			if strings.Contains(strings.ToLower(v), q) {
				return true
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && strings.Contains(strings.ToLower(s), q) {
					return true
				}
			}
		}
	}
	return false
}

// matchesFilters applies "key:value" equality filters.
func matchesFilters(row map[string]any, filters []string) bool {
	for _, f := range filters {
		key, want, ok := strings.Cut(f, ":")
		if !ok {
			continue
		}
		if fmt.Sprint(row[key]) != want {
			return false
		}
	}
	return true
}

// sortRows orders by "field" or "field desc".
func sortRows(rows []map[string]any, spec string) {
	field, dir, _ := strings.Cut(strings.TrimSpace(spec), " ")
	desc := strings.EqualFold(strings.TrimSpace(dir), "desc")
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := fmt.Sprint(rows[i][field]), fmt.Sprint(rows[j][field])
		if desc {
			return a > b
		}
		return a < b
	})
}
