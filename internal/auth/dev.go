package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// DevProvider is an in-memory identity provider for tests and
// credential-less local runs. Accounts live for the process lifetime only.
type DevProvider struct {
	mu      sync.Mutex
	byEmail map[string]string
	roles   map[string]string
}

func NewDevProvider() *DevProvider {
	return &DevProvider{
		byEmail: make(map[string]string),
		roles:   make(map[string]string),
	}
}

func (p *DevProvider) CreateUser(_ context.Context, email, password, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if email == "" || password == "" {
		return "", errors.New("email and password required")
	}
	if _, exists := p.byEmail[email]; exists {
		return "", errors.New("email already registered")
	}
	uid := uuid.NewString()
	p.byEmail[email] = uid
	return uid, nil
}

func (p *DevProvider) SetRoleClaim(_ context.Context, uid, role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.roles[uid] = role
	return nil
}

func (p *DevProvider) GetUserByEmail(_ context.Context, email string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	uid, ok := p.byEmail[email]
	if !ok {
		return "", ErrNotFound
	}
	return uid, nil
}

func (p *DevProvider) DeleteUser(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for email, id := range p.byEmail {
		if id == uid {
			delete(p.byEmail, email)
			delete(p.roles, uid)
			return nil
		}
	}
	return ErrNotFound
}
