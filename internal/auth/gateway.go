package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"acadia/school/internal/store"
)

// Collections paired with identity accounts. Profile documents share the
// provider uid as their document id.
const (
	UsersCollection    = "users"
	StudentsCollection = "students"
	ParentsCollection  = "parents"
	TeachersCollection = "teachers"
)

// Gateway pairs identity-provider accounts with profile documents. Signup
// flows create one account, assign a role claim, and commit the user record
// plus profile record(s) in a single atomic batch under the provider uid.
type Gateway struct {
	provider Provider
	store    store.Store
}

func NewGateway(provider Provider, st store.Store) *Gateway {
	return &Gateway{provider: provider, store: st}
}

// SignupResult carries the identifier shared by the account and every
// document written, plus the constructed records.
type SignupResult struct {
	UID     string
	User    map[string]any
	Student map[string]any
	Parent  map[string]any
	Teacher map[string]any
}

// CreateStudentAndParent creates one identity account for the student's
// email with a student role claim, then commits the users, students and
// parents documents together or not at all. A failed commit rolls the
// account back so signup leaves no partial state.
func (g *Gateway) CreateStudentAndParent(ctx context.Context, student, parent map[string]any, password string) (*SignupResult, error) {
	email, name, err := accountFields(student)
	if err != nil {
		return nil, err
	}

	uid, err := g.provider.CreateUser(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	if err := g.provider.SetRoleClaim(ctx, uid, RoleStudent); err != nil {
		g.rollbackAccount(ctx, uid)
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user := userRecord(uid, email, RoleStudent, now)
	studentDoc := profileRecord(student, uid, now)
	parentDoc := profileRecord(parent, uid, now)

	writes := []store.Write{
		{Collection: UsersCollection, ID: uid, Data: user},
		{Collection: StudentsCollection, ID: uid, Data: studentDoc},
		{Collection: ParentsCollection, ID: uid, Data: parentDoc},
	}
	if err := g.store.CommitAll(ctx, writes); err != nil {
		g.rollbackAccount(ctx, uid)
		return nil, err
	}

	return &SignupResult{UID: uid, User: user, Student: studentDoc, Parent: parentDoc}, nil
}

// CreateTeacher is the two-collection variant of the signup flow.
func (g *Gateway) CreateTeacher(ctx context.Context, teacher map[string]any, password string) (*SignupResult, error) {
	email, name, err := accountFields(teacher)
	if err != nil {
		return nil, err
	}

	uid, err := g.provider.CreateUser(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	if err := g.provider.SetRoleClaim(ctx, uid, RoleTeacher); err != nil {
		g.rollbackAccount(ctx, uid)
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user := userRecord(uid, email, RoleTeacher, now)
	teacherDoc := profileRecord(teacher, uid, now)

	writes := []store.Write{
		{Collection: UsersCollection, ID: uid, Data: user},
		{Collection: TeachersCollection, ID: uid, Data: teacherDoc},
	}
	if err := g.store.CommitAll(ctx, writes); err != nil {
		g.rollbackAccount(ctx, uid)
		return nil, err
	}

	return &SignupResult{UID: uid, User: user, Teacher: teacherDoc}, nil
}

// AddUser creates a bare identity account plus a users record without any
// profile document. The two writes are not atomic.
func (g *Gateway) AddUser(ctx context.Context, email, password, role string) (string, error) {
	if email == "" || password == "" {
		return "", errors.New("email and password required")
	}

	uid, err := g.provider.CreateUser(ctx, email, password, "")
	if err != nil {
		return "", err
	}
	if err := g.provider.SetRoleClaim(ctx, uid, role); err != nil {
		g.rollbackAccount(ctx, uid)
		return "", err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := g.store.MergeSet(ctx, UsersCollection, uid, userRecord(uid, email, role, now)); err != nil {
		g.rollbackAccount(ctx, uid)
		return "", err
	}
	return uid, nil
}

// GetUserByID resolves a uid to its users record.
func (g *Gateway) GetUserByID(ctx context.Context, uid string) (map[string]any, error) {
	docs, err := g.store.FindEqual(ctx, UsersCollection, "uid", uid)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0].Data, nil
}

// ValidateEmail reports whether an identity account exists for email.
func (g *Gateway) ValidateEmail(ctx context.Context, email string) (bool, error) {
	_, err := g.provider.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteUser removes the profile document(s) when they exist, then the users
// record, then the identity account. The steps are not one transaction: a
// failure after the profile delete leaves a live account without a profile,
// which is logged for operator cleanup.
func (g *Gateway) DeleteUser(ctx context.Context, uid string) error {
	docs, err := g.store.FindEqual(ctx, UsersCollection, "uid", uid)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrNotFound
	}

	role, _ := docs[0].Data["role"].(string)
	for _, collection := range profileCollections(role) {
		if err := g.store.Delete(ctx, collection, uid); err != nil {
			return err
		}
	}
	if err := g.store.Delete(ctx, UsersCollection, uid); err != nil {
		return err
	}

	if err := g.provider.DeleteUser(ctx, uid); err != nil && !errors.Is(err, ErrNotFound) {
		log.Printf("delete user %s: profile removed but identity account remains: %v", uid, err)
		return err
	}
	return nil
}

func (g *Gateway) rollbackAccount(ctx context.Context, uid string) {
	if err := g.provider.DeleteUser(ctx, uid); err != nil {
		log.Printf("signup rollback: orphaned identity account %s: %v", uid, err)
	}
}

func profileCollections(role string) []string {
	switch role {
	case RoleStudent:
		return []string{StudentsCollection, ParentsCollection}
	case RoleTeacher:
		return []string{TeachersCollection}
	default:
		return nil
	}
}

func accountFields(profile map[string]any) (email, name string, err error) {
	email, _ = profile["email"].(string)
	if email == "" {
		return "", "", errors.New("profile email required")
	}
	name, _ = profile["name"].(string)
	return email, name, nil
}

func userRecord(uid, email, role, now string) map[string]any {
	return map[string]any{
		"uid":        uid,
		"email":      email,
		"role":       role,
		"created_at": now,
		"updated_at": now,
	}
}

func profileRecord(fields map[string]any, uid, now string) map[string]any {
	record := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		record[k] = v
	}
	record["uid"] = uid
	record["created_at"] = now
	record["updated_at"] = now
	return record
}
