// Package memory provides an in-process authcore.UserProvider for tests,
// demos and single-node development.
package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/mfa"
	"github.com/google/uuid"
)

// Users is a map-backed UserProvider. Emails are stored as given; the
// engine normalizes them before every call.
type Users struct {
	mu      sync.RWMutex
	byID    map[string]authcore.UserRecord
	byEmail map[string]string
}

// NewUsers returns an empty store.
func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]authcore.UserRecord),
		byEmail: make(map[string]string),
	}
}

// Put inserts or replaces u. It is meant for seeding.
func (p *Users) Put(u authcore.UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.byID[u.UserID]; ok {
		delete(p.byEmail, old.Email)
	}
	p.byID[u.UserID] = cloneRecord(u)
	p.byEmail[u.Email] = u.UserID
}

// SetRoles replaces the roles of userID.
func (p *Users) SetRoles(userID string, roles ...string) error {
	return p.update(userID, func(u *authcore.UserRecord) {
		u.Roles = append([]string{}, roles...)
	})
}

func (p *Users) GetUserByEmail(_ context.Context, email string) (authcore.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byEmail[email]
	if !ok {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	return cloneRecord(p.byID[id]), nil
}

func (p *Users) GetUserByID(_ context.Context, userID string) (authcore.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.byID[userID]
	if !ok {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	return cloneRecord(u), nil
}

func (p *Users) CreateUser(_ context.Context, in authcore.CreateUserInput) (authcore.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[in.Email]; exists {
		return authcore.UserRecord{}, authcore.ErrAccountExists
	}

	u := authcore.UserRecord{
		UserID:       uuid.NewString(),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Roles:        append([]string{}, in.Roles...),
	}
	p.byID[u.UserID] = u
	p.byEmail[u.Email] = u.UserID
	return cloneRecord(u), nil
}

func (p *Users) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	return p.update(userID, func(u *authcore.UserRecord) {
		u.PasswordHash = passwordHash
	})
}

func (p *Users) UpdateMFA(_ context.Context, userID string, method mfa.Method, totpSecret string) error {
	return p.update(userID, func(u *authcore.UserRecord) {
		u.MFAMethod = method
		u.TOTPSecret = totpSecret
	})
}

func (p *Users) update(userID string, fn func(*authcore.UserRecord)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.byID[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	fn(&u)
	p.byID[userID] = u
	return nil
}

func cloneRecord(u authcore.UserRecord) authcore.UserRecord {
	u.Roles = append([]string{}, u.Roles...)
	return u
}
