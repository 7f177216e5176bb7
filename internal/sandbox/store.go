package sandbox

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// table is an insertion-ordered set of JSON objects keyed by id.
type table struct {
	order []string
	rows  map[string]map[string]any
}

func newTable() *table {
	return &table{rows: make(map[string]map[string]any)}
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func (t *table) get(id string) (map[string]any, bool) {
	row, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	return copyRow(row), true
}

func (t *table) put(id string, row map[string]any) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = copyRow(row)
}

func (t *table) delete(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *table) list(keep func(map[string]any) bool) []map[string]any {
	out := make([]map[string]any, 0, len(t.order))
	for _, id := range t.order {
		row := t.rows[id]
		if keep == nil || keep(row) {
			out = append(out, copyRow(row))
		}
	}
	return out
}

type session struct {
	subject string
	expires time.Time
}

// Store holds the sandbox state. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	users    map[string]string
	clients  map[string]string
	sessions map[string]session

	articles   *table
	fctables   *table
	households *table
	members    *table
	profiles   *table

	now func() time.Time
}

// NewStore returns an empty store with no accounts.
func NewStore() *Store {
	s := &Store{
		sessions: make(map[string]session),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.users = make(map[string]string)
	s.clients = make(map[string]string)
	s.articles = newTable()
	s.fctables = newTable()
	s.households = newTable()
	s.members = newTable()
	s.profiles = newTable()
}

func (s *Store) timestamp() string {
	return s.now().Format(time.RFC3339)
}

// Apply replaces accounts and data with seed. Issued tokens stay valid.
func (s *Store) Apply(seed *Seed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	if seed == nil {
		return
	}
	for _, u := range seed.Users {
		s.users[u.Username] = u.Password
	}
	for _, c := range seed.Clients {
		s.clients[c.ClientID] = c.ClientSecret
	}
	ts := s.timestamp()
	for _, row := range seed.Articles {
		s.seedCatalog(s.articles, "urn:article:", row, ts)
	}
	for _, row := range seed.FCTables {
		s.seedCatalog(s.fctables, "urn:fctable:", row, ts)
	}
	for _, row := range seed.Households {
		row = normalizeYAML(row)
		id := stringOr(row["id"], uuid.NewString())
		row["id"] = id
		stamp(row, ts)
		s.households.put(id, row)
	}
	for _, row := range seed.Members {
		row = normalizeYAML(row)
		id := stringOr(row["id"], uuid.NewString())
		row["id"] = id
		if profile, ok := row["profile"].(map[string]any); ok {
			s.profiles.put(id, profile)
			delete(row, "profile")
		}
		stamp(row, ts)
		s.members.put(id, row)
	}
}

func (s *Store) seedCatalog(t *table, prefix string, row map[string]any, ts string) {
	row = normalizeYAML(row)
	slug := slugOf(stringOr(row["urn"], uuid.NewString()))
	row["urn"] = prefix + slug
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}
	stamp(row, ts)
	t.put(slug, row)
}

func stamp(row map[string]any, ts string) {
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = ts
	}
	if _, ok := row["updated_at"]; !ok {
		row["updated_at"] = ts
	}
}

func (s *Store) checkUser(username, password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want, ok := s.users[username]
	return ok && want == password
}

func (s *Store) checkClient(id, secret string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want, ok := s.clients[id]
	return ok && want == secret
}

func (s *Store) issueToken(subject string, ttl time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.sessions[token] = session{subject: subject, expires: s.now().Add(ttl)}
	return token
}

func (s *Store) subjectFor(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok || s.now().After(sess.expires) {
		return "", false
	}
	return sess.subject, true
}

// Counts reports the number of stored records per collection.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"articles":   len(s.articles.order),
		"fctables":   len(s.fctables.order),
		"households": len(s.households.order),
		"members":    len(s.members.order),
	}
}

// slugOf returns the segment after the last colon.
func slugOf(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

// normalizeYAML converts nested map[any]any values, which older YAML
// documents can produce, into JSON-compatible maps.
func normalizeYAML(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeYAML(t)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, item := range t {
			if ks, ok := k.(string); ok {
				m[ks] = normalizeValue(item)
			}
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	}
	return v
}
