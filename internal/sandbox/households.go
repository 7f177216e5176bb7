package sandbox

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var (
	householdFields = []string{"name", "region", "metadata"}
	memberFields    = []string{"name", "age_group", "image_url"}
)

func pick(body map[string]any, allowed []string) map[string]any {
	out := make(map[string]any, len(allowed))
	for _, k := range allowed {
		if v, ok := body[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (s *Server) householdRoutes(r chi.Router) {
	r.Route("/households", func(r chi.Router) {
		r.Get("/", s.listHouseholds)
		r.Post("/", s.createHousehold)
		r.Get("/me", s.myHousehold)
		r.Get("/{id}", s.getHousehold)
		r.Patch("/{id}", s.patchHousehold)
		r.Delete("/{id}", s.deleteHousehold)
		r.Get("/{id}/members", s.householdMembers)
	})
}

func (s *Server) memberRoutes(r chi.Router) {
	r.Route("/members", func(r chi.Router) {
		r.Get("/", s.listMembers)
		r.Post("/", s.createMember)
		r.Get("/{id}", s.getMember)
		r.Patch("/{id}", s.patchMember)
		r.Delete("/{id}", s.deleteMember)
		r.Get("/{id}/profile", s.getProfile)
		r.Patch("/{id}/profile", s.patchProfile)
		r.Delete("/{id}/profile", s.deleteProfile)
	})
}

func (s *Server) listHouseholds(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}
	s.store.mu.RLock()
	rows := s.store.households.list(nil)
	s.store.mu.RUnlock()
	writeResult(w, http.StatusOK, window(rows, limit, offset))
}

func (s *Server) myHousehold(w http.ResponseWriter, r *http.Request) {
	subject := subjectOf(r)
	s.store.mu.RLock()
	rows := s.store.households.list(func(row map[string]any) bool { return row["owner_id"] == subject })
	s.store.mu.RUnlock()
	if len(rows) == 0 {
		writeNotFound(w, "household for "+subject)
		return
	}
	writeResult(w, http.StatusOK, rows[0])
}

func (s *Server) createHousehold(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	if name, _ := body["name"].(string); name == "" {
		writeValidation(w, missing("name"))
		return
	}
	var members []map[string]any
	if raw, ok := body["members"].([]any); ok {
		var errs []fieldError
		for i, item := range raw {
			m, _ := item.(map[string]any)
			for _, f := range []string{"name", "age_group"} {
				if v, _ := m[f].(string); v == "" {
					errs = append(errs, fieldError{
						Loc:  []string{"body", "members", strconv.Itoa(i), f},
						Msg:  "field required",
						Type: "value_error.missing",
					})
				}
			}
			members = append(members, m)
		}
		if len(errs) > 0 {
			writeValidation(w, errs)
			return
		}
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	ts := st.timestamp()
	row := pick(body, householdFields)
	row["id"] = uuid.NewString()
	row["owner_id"] = subjectOf(r)
	row["created_at"] = ts
	row["updated_at"] = ts
	st.households.put(row["id"].(string), row)
	for _, m := range members {
		st.putMember(row["id"].(string), m, ts)
	}
	writeResult(w, http.StatusCreated, row)
}

func (st *Store) putMember(householdID string, body map[string]any, ts string) map[string]any {
	row := pick(body, memberFields)
	row["id"] = uuid.NewString()
	row["household_id"] = householdID
	row["created_at"] = ts
	row["updated_at"] = ts
	st.members.put(row["id"].(string), row)
	return row
}

func (s *Server) getHousehold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.store.mu.RLock()
	row, ok := s.store.households.get(id)
	s.store.mu.RUnlock()
	if !ok {
		writeNotFound(w, "household "+id)
		return
	}
	writeResult(w, http.StatusOK, row)
}

func (s *Server) patchHousehold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	row, ok := st.households.get(id)
	if !ok {
		writeNotFound(w, "household "+id)
		return
	}
	for k, v := range pick(body, householdFields) {
		row[k] = v
	}
	row["updated_at"] = st.timestamp()
	st.households.put(id, row)
	writeResult(w, http.StatusOK, row)
}

func (s *Server) deleteHousehold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.households.delete(id) {
		writeNotFound(w, "household "+id)
		return
	}
	for _, m := range st.members.list(func(row map[string]any) bool { return row["household_id"] == id }) {
		mid := m["id"].(string)
		st.members.delete(mid)
		st.profiles.delete(mid)
	}
	writeResult(w, http.StatusOK, nil)
}

func (s *Server) householdMembers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st := s.store
	st.mu.RLock()
	_, ok := st.households.get(id)
	rows := st.members.list(func(row map[string]any) bool { return row["household_id"] == id })
	st.mu.RUnlock()
	if !ok {
		writeNotFound(w, "household "+id)
		return
	}
	writeResult(w, http.StatusOK, rows)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}
	household := r.URL.Query().Get("household_id")
	s.store.mu.RLock()
	rows := s.store.members.list(func(row map[string]any) bool {
		return household == "" || row["household_id"] == household
	})
	s.store.mu.RUnlock()
	writeResult(w, http.StatusOK, window(rows, limit, offset))
}

func (s *Server) createMember(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	var absent []string
	for _, f := range []string{"household_id", "name", "age_group"} {
		if v, _ := body[f].(string); v == "" {
			absent = append(absent, f)
		}
	}
	if len(absent) > 0 {
		writeValidation(w, missing(absent...))
		return
	}
	householdID := body["household_id"].(string)

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.households.get(householdID); !ok {
		writeNotFound(w, "household "+householdID)
		return
	}
	writeResult(w, http.StatusCreated, st.putMember(householdID, body, st.timestamp()))
}

func (s *Server) getMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.store.mu.RLock()
	row, ok := s.store.members.get(id)
	s.store.mu.RUnlock()
	if !ok {
		writeNotFound(w, "member "+id)
		return
	}
	writeResult(w, http.StatusOK, row)
}

func (s *Server) patchMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	row, ok := st.members.get(id)
	if !ok {
		writeNotFound(w, "member "+id)
		return
	}
	for k, v := range pick(body, memberFields) {
		row[k] = v
	}
	row["updated_at"] = st.timestamp()
	st.members.put(id, row)
	writeResult(w, http.StatusOK, row)
}

func (s *Server) deleteMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.members.delete(id) {
		writeNotFound(w, "member "+id)
		return
	}
	st.profiles.delete(id)
	writeResult(w, http.StatusOK, nil)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.store.mu.RLock()
	row, ok := s.store.profiles.get(id)
	s.store.mu.RUnlock()
	if !ok {
		writeNotFound(w, "profile of member "+id)
		return
	}
	writeResult(w, http.StatusOK, row)
}

// patchProfile merges into the profile, creating it on first write.
func (s *Server) patchProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.members.get(id); !ok {
		writeNotFound(w, "member "+id)
		return
	}
	row, ok := st.profiles.get(id)
	if !ok {
		row = make(map[string]any)
	}
	for k, v := range body {
		row[k] = v
	}
	st.profiles.put(id, row)
	writeResult(w, http.StatusOK, row)
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st := s.store
	st.mu.Lock()
	ok := st.profiles.delete(id)
	st.mu.Unlock()
	if !ok {
		writeNotFound(w, "profile of member "+id)
		return
	}
	writeResult(w, http.StatusOK, nil)
}
