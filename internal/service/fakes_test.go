package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/rkamal/authcore/internal/apperror"
	"github.com/rkamal/authcore/internal/auth"
	"github.com/rkamal/authcore/internal/model"
	"github.com/rkamal/authcore/internal/repository"
)

// In-memory fakes for the repository interfaces. They mimic the store
// semantics the service layer relies on (normalized-email lookups,
// single active pair, unique provider links) without touching SQLite.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct {
	users map[string]*model.User // keyed by ID

	createErr     error
	getByEmailErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return apperror.Conflict("Email already registered")
		}
	}
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if r.getByEmailErr != nil {
		return nil, r.getByEmailErr
	}
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.LastLogin = &at
	return nil
}

type fakeTokenRepo struct {
	active map[string]*model.TokenPair // current active pair per user
	issued int

	issueErr  error
	lookupErr error
}

var _ repository.TokenRepository = (*fakeTokenRepo)(nil)

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{active: make(map[string]*model.TokenPair)}
}

func (r *fakeTokenRepo) Issue(_ context.Context, pair *model.TokenPair) error {
	if r.issueErr != nil {
		return r.issueErr
	}
	pair.ID = xid.New().String()
	pair.IsActive = true
	pair.CreatedAt = time.Now().UTC()
	clone := *pair
	r.active[pair.UserID] = &clone
	r.issued++
	return nil
}

func (r *fakeTokenRepo) DeactivateAll(_ context.Context, userID string) error {
	delete(r.active, userID)
	return nil
}

func (r *fakeTokenRepo) HasActive(_ context.Context, userID string) (bool, error) {
	if r.lookupErr != nil {
		return false, r.lookupErr
	}
	_, ok := r.active[userID]
	return ok, nil
}

func (r *fakeTokenRepo) IsActiveRefresh(_ context.Context, userID, refreshToken string) (bool, error) {
	if r.lookupErr != nil {
		return false, r.lookupErr
	}
	pair, ok := r.active[userID]
	return ok && pair.RefreshToken == refreshToken, nil
}

type fakeIdentityRepo struct {
	users *fakeUserRepo
	links []model.OAuthLink

	findErr error
}

var _ repository.IdentityRepository = (*fakeIdentityRepo)(nil)

func newFakeIdentityRepo(users *fakeUserRepo) *fakeIdentityRepo {
	return &fakeIdentityRepo{users: users}
}

func (r *fakeIdentityRepo) FindOrCreateWithLink(ctx context.Context, email, name string, provider model.Provider, providerUserID string) (*model.User, bool, error) {
	if r.findErr != nil {
		return nil, false, r.findErr
	}
	for _, link := range r.links {
		if link.Provider == provider && link.ProviderUserID == providerUserID {
			u, err := r.users.GetByID(ctx, link.UserID)
			return u, false, err
		}
	}

	user, err := r.users.GetByEmail(ctx, email)
	created := false
	if err != nil {
		user = &model.User{Email: email, Name: name}
		if err := r.users.Create(ctx, user); err != nil {
			return nil, false, err
		}
		created = true
	}

	for _, link := range r.links {
		if link.UserID == user.ID && link.Provider == provider {
			return user, created, nil
		}
		if link.Provider == provider && link.ProviderUserID == providerUserID && link.UserID != user.ID {
			return nil, false, fmt.Errorf("provider identity already linked to another user")
		}
	}
	r.links = append(r.links, model.OAuthLink{
		ID:             xid.New().String(),
		UserID:         user.ID,
		Provider:       provider,
		ProviderUserID: providerUserID,
		CreatedAt:      time.Now().UTC(),
	})
	return user, created, nil
}

func (r *fakeIdentityRepo) LinksForUser(_ context.Context, userID string) ([]model.OAuthLink, error) {
	var out []model.OAuthLink
	for _, link := range r.links {
		if link.UserID == userID {
			out = append(out, link)
		}
	}
	return out, nil
}

// countingRecorder counts recorder callbacks so tests can assert the
// service layer emits them.
type countingRecorder struct {
	registered  int
	loginOK     int
	loginFailed int
	oauth       map[string]int
	pairs       int
	verified    map[auth.VerifyStatus]int
}

var _ Recorder = (*countingRecorder)(nil)

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		oauth:    make(map[string]int),
		verified: make(map[auth.VerifyStatus]int),
	}
}

func (c *countingRecorder) UserRegistered()                   { c.registered++ }
func (c *countingRecorder) LoginSucceeded()                   { c.loginOK++ }
func (c *countingRecorder) LoginFailed()                      { c.loginFailed++ }
func (c *countingRecorder) TokensIssued()                     { c.pairs++ }
func (c *countingRecorder) OAuthLogin(p string)               { c.oauth[p]++ }
func (c *countingRecorder) TokenVerified(s auth.VerifyStatus) { c.verified[s]++ }
