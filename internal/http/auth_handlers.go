package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"acadia/school/internal/auth"
)

type signupStudentRequest struct {
	Student  map[string]any `json:"student"`
	Parent   map[string]any `json:"parent"`
	Password string         `json:"password"`
}

func (s *Server) handleSignupStudent(w http.ResponseWriter, r *http.Request) {
	var req signupStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(req.Student) == 0 || len(req.Parent) == 0 || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	res, err := s.gateway.CreateStudentAndParent(r.Context(), req.Student, req.Parent, req.Password)
	if err != nil {
		status, code := auth.HTTPError(err)
		log.Printf("student signup failed: %v", err)
		writeError(w, status, code)
		return
	}

	s.invalidateList(r.Context(), auth.UsersCollection)
	s.invalidateList(r.Context(), auth.StudentsCollection)
	s.invalidateList(r.Context(), auth.ParentsCollection)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      res.UID,
		"user":    res.User,
		"student": res.Student,
		"parent":  res.Parent,
	})
}

type signupTeacherRequest struct {
	Teacher  map[string]any `json:"teacher"`
	Password string         `json:"password"`
}

func (s *Server) handleSignupTeacher(w http.ResponseWriter, r *http.Request) {
	var req signupTeacherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(req.Teacher) == 0 || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	res, err := s.gateway.CreateTeacher(r.Context(), req.Teacher, req.Password)
	if err != nil {
		status, code := auth.HTTPError(err)
		log.Printf("teacher signup failed: %v", err)
		writeError(w, status, code)
		return
	}

	s.invalidateList(r.Context(), auth.UsersCollection)
	s.invalidateList(r.Context(), auth.TeachersCollection)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      res.UID,
		"user":    res.User,
		"teacher": res.Teacher,
	})
}

type addUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Role = strings.TrimSpace(strings.ToLower(req.Role))
	if req.Email == "" || req.Password == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !isValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	uid, err := s.gateway.AddUser(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		status, code := auth.HTTPError(err)
		log.Printf("add user failed: %v", err)
		writeError(w, status, code)
		return
	}

	s.invalidateList(r.Context(), auth.UsersCollection)
	writeJSON(w, http.StatusCreated, map[string]string{"id": uid})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing_uid")
		return
	}

	user, err := s.gateway.GetUserByID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		log.Printf("get user failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": uid, "user": user})
}

type validateEmailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleValidateEmail(w http.ResponseWriter, r *http.Request) {
	var req validateEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing_email")
		return
	}

	exists, err := s.gateway.ValidateEmail(r.Context(), req.Email)
	if err != nil {
		status, code := auth.HTTPError(err)
		log.Printf("validate email failed: %v", err)
		writeError(w, status, code)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"email": req.Email, "exists": exists})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing_uid")
		return
	}

	if err := s.gateway.DeleteUser(r.Context(), uid); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		status, code := auth.HTTPError(err)
		log.Printf("delete user failed: %v", err)
		writeError(w, status, code)
		return
	}

	s.invalidateList(r.Context(), auth.UsersCollection)
	s.invalidateList(r.Context(), auth.StudentsCollection)
	s.invalidateList(r.Context(), auth.ParentsCollection)
	s.invalidateList(r.Context(), auth.TeachersCollection)
	w.WriteHeader(http.StatusNoContent)
}

func isValidRole(role string) bool {
	switch role {
	case auth.RoleAdmin, auth.RoleTeacher, auth.RoleStudent:
		return true
	default:
		return false
	}
}
