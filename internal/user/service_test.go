package user

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitclass/internal/apperr"
	"fitclass/internal/auth"
)

type fakeRepo struct {
	users   map[int]*User
	byEmail map[string]*User
	nextID  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[int]*User{}, byEmail: map[string]*User{}, nextID: 1}
}

func (r *fakeRepo) Create(ctx context.Context, name, email, passwordHash, role string) (*User, error) {
	u := &User{ID: r.nextID, Name: name, Email: email, PasswordHash: passwordHash, Role: role}
	r.nextID++
	r.users[u.ID] = u
	r.byEmail[email] = u
	return u, nil
}

func (r *fakeRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id int) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *fakeRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, ok := r.byEmail[email]
	return ok, nil
}

func newUserService(repo Repository) Service {
	return NewService(repo, "access-secret", "refresh-secret")
}

func TestRegisterIssuesTokens(t *testing.T) {
	svc := newUserService(newFakeRepo())

	u, access, refresh, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Alex",
		Email:    "alex@example.com",
		Password: "correct horse",
		Role:     RoleTrainer,
	})

	require.NoError(t, err)
	assert.Equal(t, RoleTrainer, u.Role)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	claims, err := auth.ValidateToken(access, "access-secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, RoleTrainer, claims.Role)
	assert.NotEmpty(t, refresh)
}

func TestRegisterDefaultsToMember(t *testing.T) {
	svc := newUserService(newFakeRepo())

	u, _, _, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Alex",
		Email:    "alex@example.com",
		Password: "correct horse",
	})

	require.NoError(t, err)
	assert.Equal(t, RoleMember, u.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeRepo()
	svc := newUserService(repo)

	_, _, _, err := svc.Register(context.Background(), RegisterRequest{
		Name: "Alex", Email: "alex@example.com", Password: "correct horse",
	})
	require.NoError(t, err)

	_, _, _, err = svc.Register(context.Background(), RegisterRequest{
		Name: "Alex Again", Email: "alex@example.com", Password: "correct horse",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc := newUserService(newFakeRepo())

	_, _, _, err := svc.Register(context.Background(), RegisterRequest{
		Name: "Eve", Email: "eve@example.com", Password: "correct horse", Role: RoleAdmin,
	})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.PolicyViolation))
}

func TestLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newUserService(repo)

	_, _, _, err := svc.Register(context.Background(), RegisterRequest{
		Name: "Alex", Email: "alex@example.com", Password: "correct horse",
	})
	require.NoError(t, err)

	u, access, _, err := svc.Login(context.Background(), LoginRequest{
		Email: "alex@example.com", Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", u.Email)
	assert.NotEmpty(t, access)

	_, _, _, err = svc.Login(context.Background(), LoginRequest{
		Email: "alex@example.com", Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = svc.Login(context.Background(), LoginRequest{
		Email: "nobody@example.com", Password: "correct horse",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateRoles(t *testing.T) {
	repo := newFakeRepo()
	svc := newUserService(repo)

	member, _ := repo.Create(context.Background(), "M", "m@example.com", "x", RoleMember)
	trainer, _ := repo.Create(context.Background(), "T", "t@example.com", "x", RoleTrainer)

	assert.NoError(t, svc.ValidateMember(context.Background(), member.ID))
	assert.NoError(t, svc.ValidateTrainer(context.Background(), trainer.ID))

	err := svc.ValidateTrainer(context.Background(), member.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.AccessDenied))

	err = svc.ValidateMember(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
