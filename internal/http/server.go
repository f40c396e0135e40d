package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"acadia/school/internal/auth"
	"acadia/school/internal/config"
	"acadia/school/internal/store"
)

type Server struct {
	cfg      config.Config
	store    store.Store
	gateway  *auth.Gateway
	verifier auth.Verifier
	redis    *redis.Client
}

func NewServer(cfg config.Config, st store.Store, gateway *auth.Gateway, verifier auth.Verifier, redisClient *redis.Client) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		gateway:  gateway,
		verifier: verifier,
		redis:    redisClient,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/validateEmail", s.handleValidateEmail)
	r.With(s.authenticate, s.authorize(adminOnly)).Post("/auth/signup", s.handleSignupStudent)
	r.With(s.authenticate, s.authorize(adminOnly)).Post("/auth/signup/teacher", s.handleSignupTeacher)
	r.With(s.authenticate, s.authorize(adminOnly)).Post("/auth/users", s.handleAddUser)
	r.With(s.authenticate, s.authorize(selfOrAnyRole)).Get("/auth/users/{uid}", s.handleGetUser)
	r.With(s.authenticate, s.authorize(adminOnly)).Delete("/auth/delete/{uid}", s.handleDeleteUser)

	for _, def := range entities {
		s.mountEntity(r, def)
	}

	return r
}

// policy declares what a route requires: a role in roles, or, when
// sameUserParam is set, a path parameter equal to the caller's uid, which
// admits regardless of role.
type policy struct {
	roles         []string
	sameUserParam string
}

var (
	adminOnly  = policy{roles: []string{auth.RoleAdmin}}
	staffWrite = policy{roles: []string{auth.RoleAdmin, auth.RoleTeacher}}
	anyRole    = policy{roles: []string{auth.RoleAdmin, auth.RoleTeacher, auth.RoleStudent}}

	selfOrAnyRole = policy{
		roles:         []string{auth.RoleAdmin, auth.RoleTeacher, auth.RoleStudent},
		sameUserParam: "uid",
	}
)

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authorize(p policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if !admitted(p, claims, chi.URLParam(r, p.sameUserParam)) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// admitted evaluates one policy: a same-user match wins outright; otherwise
// a role claim must be present and in the allowed set.
func admitted(p policy, claims *auth.Claims, paramID string) bool {
	if claims == nil {
		return false
	}
	if p.sameUserParam != "" && paramID != "" && paramID == claims.UID {
		return true
	}
	if claims.Role == "" {
		return false
	}
	for _, role := range p.roles {
		if role == claims.Role {
			return true
		}
	}
	return false
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
