package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"acadia/school/internal/store"
)

// entityDef describes one logical collection exposed over the generic CRUD
// surface: its URL segment, the JSON field wrapping records in search
// responses, the backing collection, the business-key field, and the roles
// allowed to write. Reads are open to any authenticated role.
type entityDef struct {
	path       string
	name       string
	collection string
	keyField   string
	write      policy
	genKey     bool
}

var entities = []entityDef{
	{path: "students", name: "student", collection: "students", keyField: "roll_no", write: adminOnly},
	{path: "teachers", name: "teacher", collection: "teachers", keyField: "teacher_id", write: adminOnly},
	{path: "parents", name: "parent", collection: "parents", keyField: "parent_id", write: adminOnly},
	{path: "sections", name: "section", collection: "sections", keyField: "section_id", write: adminOnly},
	{path: "grades", name: "grade", collection: "grades", keyField: "grade_name", write: adminOnly},
	{path: "subjects", name: "subject", collection: "subjects", keyField: "subject_id", write: adminOnly},
	{path: "attendance", name: "attendance", collection: "attendance", keyField: "roll_no", write: staffWrite},
	{path: "circulars", name: "circular", collection: "circulars", keyField: "circular_id", write: staffWrite, genKey: true},
	{path: "timetables", name: "timetable", collection: "timetables", keyField: "section_id", write: adminOnly},
	{path: "examresults", name: "exam_result", collection: "exam_results", keyField: "roll_no", write: staffWrite},
}

func (s *Server) mountEntity(r chi.Router, def entityDef) {
	acc := store.NewAccessor(s.store, def.collection, def.keyField)
	read := s.authorize(anyRole)
	write := s.authorize(def.write)

	r.With(s.authenticate, write).Post("/"+def.path+"/create", s.handleCreate(def, acc))
	r.With(s.authenticate, read).Get("/"+def.path+"/search/{key}", s.handleSearch(def, acc))
	r.With(s.authenticate, read).Get("/"+def.path+"/all", s.handleList(def, acc))
	r.With(s.authenticate, write).Put("/"+def.path+"/update/{key}", s.handleUpdate(def, acc))
	r.With(s.authenticate, write).Delete("/"+def.path+"/delete/{key}", s.handleDelete(def, acc))
}

func (s *Server) handleCreate(def entityDef, acc *store.Accessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var record map[string]any
		if err := decodeJSON(r, &record); err != nil || len(record) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}

		if _, ok := record[def.keyField]; !ok {
			if !def.genKey {
				writeError(w, http.StatusBadRequest, "missing_"+def.keyField)
				return
			}
			record[def.keyField] = uuid.NewString()
		}

		id, err := acc.Add(r.Context(), record)
		if err != nil {
			log.Printf("%s create failed: %v", def.name, err)
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		s.invalidateList(r.Context(), def.collection)
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

func (s *Server) handleSearch(def entityDef, acc *store.Accessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" {
			writeError(w, http.StatusBadRequest, "missing_key")
			return
		}

		matches, err := acc.Search(r.Context(), key)
		if err != nil {
			log.Printf("%s search failed: %v", def.name, err)
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		writeJSON(w, http.StatusOK, shapeMatches(def, matches))
	}
}

func (s *Server) handleUpdate(def entityDef, acc *store.Accessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" {
			writeError(w, http.StatusBadRequest, "missing_key")
			return
		}

		var partial map[string]any
		if err := decodeJSON(r, &partial); err != nil || len(partial) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}

		ok, err := acc.Update(r.Context(), key, partial)
		if err != nil {
			log.Printf("%s update failed: %v", def.name, err)
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		s.invalidateList(r.Context(), def.collection)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDelete(def entityDef, acc *store.Accessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" {
			writeError(w, http.StatusBadRequest, "missing_key")
			return
		}

		ok, err := acc.Delete(r.Context(), key)
		if err != nil {
			log.Printf("%s delete failed: %v", def.name, err)
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		s.invalidateList(r.Context(), def.collection)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleList(def entityDef, acc *store.Accessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload, ok := s.cachedList(r.Context(), def.collection); ok {
			writeRaw(w, payload)
			return
		}

		matches, err := acc.All(r.Context())
		if err != nil {
			log.Printf("%s list failed: %v", def.name, err)
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		payload, err := json.Marshal(shapeMatches(def, matches))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		s.storeList(r.Context(), def.collection, payload)
		writeRaw(w, payload)
	}
}

// shapeMatches produces the wire rows: {"id": ..., "<entity>": {...}}. No
// match yields an empty array, never a sentinel row.
func shapeMatches(def entityDef, matches []store.Match) []map[string]any {
	rows := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, map[string]any{"id": m.ID, def.name: m.Record})
	}
	return rows
}

func writeRaw(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// List caching is best-effort: all paths are no-ops without a redis client,
// and cache errors never fail the request.

func (s *Server) cachedList(ctx context.Context, collection string) ([]byte, bool) {
	if s.redis == nil {
		return nil, false
	}
	payload, err := s.redis.Get(ctx, listCacheKey(collection)).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (s *Server) storeList(ctx context.Context, collection string, payload []byte) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, listCacheKey(collection), payload, s.cfg.ListCacheTTL).Err(); err != nil {
		log.Printf("list cache set failed for %s: %v", collection, err)
	}
}

func (s *Server) invalidateList(ctx context.Context, collection string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, listCacheKey(collection)).Err(); err != nil {
		log.Printf("list cache invalidate failed for %s: %v", collection, err)
	}
}

func listCacheKey(collection string) string {
	return "acadia:list:" + collection
}
