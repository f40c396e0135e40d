package auth

import (
	"context"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Provider is the slice of the managed identity provider the gateway uses:
// account lifecycle plus role claims. Token checking lives on Verifier.
type Provider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	SetRoleClaim(ctx context.Context, uid, role string) error
	GetUserByEmail(ctx context.Context, email string) (string, error)
	DeleteUser(ctx context.Context, uid string) error
}

// NewFirebase builds the production provider and verifier from one service
// account blob. Both share a single long-lived client.
func NewFirebase(ctx context.Context, credentials []byte) (*FirebaseProvider, *FirebaseVerifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(credentials))
	if err != nil {
		return nil, nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &FirebaseProvider{client: client}, &FirebaseVerifier{client: client}, nil
}

type FirebaseProvider struct {
	client *fbauth.Client
}

func (p *FirebaseProvider) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&fbauth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	rec, err := p.client.CreateUser(ctx, params)
	if err != nil {
		return "", err
	}
	return rec.UID, nil
}

func (p *FirebaseProvider) SetRoleClaim(ctx context.Context, uid, role string) error {
	return p.client.SetCustomUserClaims(ctx, uid, map[string]interface{}{"role": role})
}

func (p *FirebaseProvider) GetUserByEmail(ctx context.Context, email string) (string, error) {
	rec, err := p.client.GetUserByEmail(ctx, email)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return rec.UID, nil
}

func (p *FirebaseProvider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		if fbauth.IsUserNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// FirebaseVerifier checks ID tokens against the provider and lifts the role
// claim out of the custom claims.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}

	claims := &Claims{UID: decoded.UID}
	if role, ok := decoded.Claims["role"].(string); ok {
		claims.Role = role
	}
	if email, ok := decoded.Claims["email"].(string); ok {
		claims.Email = email
	}
	return claims, nil
}
