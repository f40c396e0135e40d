package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"acadia/school/internal/auth"
	"acadia/school/internal/config"
	"acadia/school/internal/store"
)

const (
	testSecret = "test-secret"
	testIssuer = "test-issuer"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Mem) {
	t.Helper()

	mem := store.NewMem()
	cfg := config.Config{
		HTTPAddr:     ":0",
		DevJWTSecret: testSecret,
		JWTIssuer:    testIssuer,
		ListCacheTTL: time.Minute,
	}
	gateway := auth.NewGateway(auth.NewDevProvider(), mem)
	verifier := auth.DevVerifier{Secret: testSecret, Issuer: testIssuer}
	server := NewServer(cfg, mem, gateway, verifier, nil)

	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return app, mem
}

func mustToken(t *testing.T, uid, role string) string {
	t.Helper()
	token, err := auth.NewAccessToken(testSecret, testIssuer, 10*time.Minute, auth.Claims{
		UID:  uid,
		Role: role,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func TestStudentCRUDFlow(t *testing.T) {
	app, _ := newTestServer(t)
	adminToken := mustToken(t, "admin-1", auth.RoleAdmin)

	// Create.
	resp := doReq(t, http.MethodPost, app.URL+"/students/create", adminToken, map[string]any{
		"roll_no":    "1001",
		"name":       "Asha",
		"section_id": "A",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created map[string]string
	decodeBody(t, resp, &created)
	if created["id"] == "" {
		t.Fatalf("expected generated id in response")
	}

	// Search returns the created payload wrapped as {id, student}.
	resp = doReq(t, http.MethodGet, app.URL+"/students/search/1001", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rows []map[string]any
	decodeBody(t, resp, &rows)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["id"] != created["id"] {
		t.Fatalf("expected id %s, got %v", created["id"], rows[0]["id"])
	}
	student, ok := rows[0]["student"].(map[string]any)
	if !ok || student["name"] != "Asha" {
		t.Fatalf("unexpected student record: %v", rows[0])
	}

	// Update then verify.
	resp = doReq(t, http.MethodPut, app.URL+"/students/update/1001", adminToken, map[string]any{"section_id": "B"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, app.URL+"/students/search/1001", adminToken, nil)
	decodeBody(t, resp, &rows)
	if rows[0]["student"].(map[string]any)["section_id"] != "B" {
		t.Fatalf("expected merged update, got %v", rows[0])
	}

	// List.
	resp = doReq(t, http.MethodGet, app.URL+"/students/all", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &rows)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row in list, got %d", len(rows))
	}

	// Delete then search empty.
	resp = doReq(t, http.MethodDelete, app.URL+"/students/delete/1001", adminToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, app.URL+"/students/search/1001", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &rows)
	if len(rows) != 0 {
		t.Fatalf("expected empty result after delete, got %v", rows)
	}
}

func TestSearchUnknownKeyReturnsEmptyArray(t *testing.T) {
	app, _ := newTestServer(t)
	studentToken := mustToken(t, "student-1", auth.RoleStudent)

	resp := doReq(t, http.MethodGet, app.URL+"/students/search/9999", studentToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for unknown roll number, got %d", resp.StatusCode)
	}
	var rows []map[string]any
	decodeBody(t, resp, &rows)
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected [], got %v", rows)
	}
}

func TestUpdateDeleteMissingKeyReturn404(t *testing.T) {
	app, _ := newTestServer(t)
	adminToken := mustToken(t, "admin-1", auth.RoleAdmin)

	resp := doReq(t, http.MethodPut, app.URL+"/teachers/update/T-404", adminToken, map[string]any{"name": "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for update, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodDelete, app.URL+"/teachers/delete/T-404", adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for delete, got %d", resp.StatusCode)
	}
}

func TestCreateRequiresBusinessKey(t *testing.T) {
	app, _ := newTestServer(t)
	adminToken := mustToken(t, "admin-1", auth.RoleAdmin)

	resp := doReq(t, http.MethodPost, app.URL+"/students/create", adminToken, map[string]any{"name": "no key"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCircularCreateGeneratesKey(t *testing.T) {
	app, _ := newTestServer(t)
	teacherToken := mustToken(t, "teacher-1", auth.RoleTeacher)

	resp := doReq(t, http.MethodPost, app.URL+"/circulars/create", teacherToken, map[string]any{
		"title": "Sports day",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/circulars/all", teacherToken, nil)
	var rows []map[string]any
	decodeBody(t, resp, &rows)
	if len(rows) != 1 {
		t.Fatalf("expected 1 circular, got %d", len(rows))
	}
	circular := rows[0]["circular"].(map[string]any)
	if id, _ := circular["circular_id"].(string); id == "" {
		t.Fatalf("expected generated circular_id, got %v", circular)
	}
}

func TestAuthenticationGate(t *testing.T) {
	app, _ := newTestServer(t)

	// No token.
	resp := doReq(t, http.MethodGet, app.URL+"/students/all", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	// Malformed token.
	resp = doReq(t, http.MethodGet, app.URL+"/students/all", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestWriteRoutesAreRoleGated(t *testing.T) {
	app, _ := newTestServer(t)
	studentToken := mustToken(t, "student-1", auth.RoleStudent)
	teacherToken := mustToken(t, "teacher-1", auth.RoleTeacher)

	// Students cannot create sections.
	resp := doReq(t, http.MethodPost, app.URL+"/sections/create", studentToken, map[string]any{"section_id": "A"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for student create, got %d", resp.StatusCode)
	}

	// Teachers cannot create sections either, but can post circulars.
	resp = doReq(t, http.MethodPost, app.URL+"/sections/create", teacherToken, map[string]any{"section_id": "A"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for teacher section create, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPost, app.URL+"/attendance/create", teacherToken, map[string]any{
		"roll_no": "1001", "date": "2026-08-31", "status": "present",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for teacher attendance create, got %d", resp.StatusCode)
	}

	// Any authenticated role can read.
	resp = doReq(t, http.MethodGet, app.URL+"/sections/all", studentToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for student read, got %d", resp.StatusCode)
	}
}

func TestSameUserAdmittedWithoutRole(t *testing.T) {
	app, mem := newTestServer(t)

	// Seed a users record directly.
	if err := mem.MergeSet(context.Background(), auth.UsersCollection, "user-7", map[string]any{
		"uid": "user-7", "email": "u7@example.local", "role": "student",
	}); err != nil {
		t.Fatalf("seed error: %v", err)
	}

	// Token with matching uid but no role claim is admitted.
	noRoleToken := mustToken(t, "user-7", "")
	resp := doReq(t, http.MethodGet, app.URL+"/auth/users/user-7", noRoleToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for same-user access, got %d", resp.StatusCode)
	}

	// Same token for another uid is rejected: no role claim, no same-user match.
	resp = doReq(t, http.MethodGet, app.URL+"/auth/users/user-8", noRoleToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-user access without role, got %d", resp.StatusCode)
	}
}

func TestSignupFlow(t *testing.T) {
	app, _ := newTestServer(t)
	adminToken := mustToken(t, "admin-1", auth.RoleAdmin)
	studentToken := mustToken(t, "student-1", auth.RoleStudent)

	// Only admins may sign up students.
	body := map[string]any{
		"student":  map[string]any{"email": "a@b.com", "name": "Asha", "roll_no": "1001"},
		"parent":   map[string]any{"name": "Bina"},
		"password": "secret123",
	}
	resp := doReq(t, http.MethodPost, app.URL+"/auth/signup", studentToken, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin signup, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/auth/signup", adminToken, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created map[string]any
	decodeBody(t, resp, &created)
	uid, _ := created["id"].(string)
	if uid == "" {
		t.Fatalf("expected uid in signup response")
	}

	// The paired records surface through the generic entity routes too.
	resp = doReq(t, http.MethodGet, app.URL+"/students/search/1001", adminToken, nil)
	var rows []map[string]any
	decodeBody(t, resp, &rows)
	if len(rows) != 1 || rows[0]["id"] != uid {
		t.Fatalf("expected student profile under uid %s, got %v", uid, rows)
	}

	// Duplicate email maps through the provider error table.
	resp = doReq(t, http.MethodPost, app.URL+"/auth/signup", adminToken, body)
	if resp.StatusCode != http.StatusInternalServerError && resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected provider error status, got %d", resp.StatusCode)
	}

	// validateEmail is open and reflects the new account.
	resp = doReq(t, http.MethodPost, app.URL+"/auth/validateEmail", "", map[string]any{"email": "a@b.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var validated map[string]any
	decodeBody(t, resp, &validated)
	if validated["exists"] != true {
		t.Fatalf("expected exists=true, got %v", validated)
	}

	// Admin deletes the user; profile and account go away.
	resp = doReq(t, http.MethodDelete, app.URL+"/auth/delete/"+uid, adminToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, app.URL+"/students/search/1001", adminToken, nil)
	decodeBody(t, resp, &rows)
	if len(rows) != 0 {
		t.Fatalf("expected student profile removed, got %v", rows)
	}
	resp = doReq(t, http.MethodDelete, app.URL+"/auth/delete/"+uid, adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for second delete, got %d", resp.StatusCode)
	}
}

func TestAdmitted(t *testing.T) {
	claims := func(uid, role string) *auth.Claims { return &auth.Claims{UID: uid, Role: role} }

	cases := []struct {
		name    string
		p       policy
		claims  *auth.Claims
		paramID string
		expect  bool
	}{
		{"nil claims", anyRole, nil, "", false},
		{"role in set", adminOnly, claims("u1", auth.RoleAdmin), "", true},
		{"role not in set", adminOnly, claims("u1", auth.RoleStudent), "", false},
		{"missing role", anyRole, claims("u1", ""), "", false},
		{"same user wins without role", selfOrAnyRole, claims("u1", ""), "u1", true},
		{"same user mismatch falls through", selfOrAnyRole, claims("u1", ""), "u2", false},
		{"same user mismatch but role in set", selfOrAnyRole, claims("u1", auth.RoleTeacher), "u2", true},
	}
	for _, tc := range cases {
		if got := admitted(tc.p, tc.claims, tc.paramID); got != tc.expect {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expect, got)
		}
	}
}

func TestHealth(t *testing.T) {
	app, _ := newTestServer(t)

	resp, err := http.Get(app.URL + "/health")
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
