package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MVictoriaDoll/NutriChoice/domain"
	"github.com/MVictoriaDoll/NutriChoice/entities"
)

type stubUserRepository struct {
	users   map[string]*entities.User
	touched []string
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{users: map[string]*entities.User{}}
}

func (r *stubUserRepository) GetUserByID(ctx context.Context, id string) (*entities.User, error) {
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepository) GetUserWithSummary(ctx context.Context, id string) (*entities.User, error) {
	return r.GetUserByID(ctx, id)
}

func (r *stubUserRepository) CreateUser(ctx context.Context, user *entities.User) error {
	r.users[user.ID.String()] = user
	return nil
}

func (r *stubUserRepository) UpdateUser(ctx context.Context, user *entities.User) error {
	r.users[user.ID.String()] = user
	return nil
}

func (r *stubUserRepository) TouchLastLogin(ctx context.Context, id string) error {
	r.touched = append(r.touched, id)
	return nil
}

func TestEnsureUserFirstContact(t *testing.T) {
	repo := newStubUserRepository()
	service := NewUserService(repo)

	userID := uuid.NewString()
	require.NoError(t, service.EnsureUser(context.Background(), userID))

	created, ok := repo.users[userID]
	require.True(t, ok)
	assert.Equal(t, "Guest-"+userID[:8], created.DisplayName)
	assert.False(t, created.LastLogin.IsZero())
	assert.Empty(t, repo.touched)
}

func TestEnsureUserExisting(t *testing.T) {
	repo := newStubUserRepository()
	service := NewUserService(repo)

	userID := uuid.New()
	repo.users[userID.String()] = &entities.User{ID: userID, DisplayName: "Maria"}

	require.NoError(t, service.EnsureUser(context.Background(), userID.String()))

	assert.Equal(t, "Maria", repo.users[userID.String()].DisplayName)
	assert.Equal(t, []string{userID.String()}, repo.touched)
}

func TestEnsureUserInvalidID(t *testing.T) {
	service := NewUserService(newStubUserRepository())
	assert.ErrorIs(t, service.EnsureUser(context.Background(), "not-a-uuid"), domain.ErrParseUUID)
}

func TestUpdateProfile(t *testing.T) {
	repo := newStubUserRepository()
	service := NewUserService(repo)

	userID := uuid.New()
	repo.users[userID.String()] = &entities.User{
		ID:          userID,
		DisplayName: "Guest-12345678",
		Preferences: entities.JSONMap{},
	}

	res, err := service.UpdateProfile(context.Background(), domain.UpdateProfileRequest{
		DisplayName: "Maria",
		Preferences: map[string]interface{}{"diet": "vegetarian"},
	}, userID.String())
	require.NoError(t, err)

	assert.Equal(t, "Maria", res.DisplayName)
	assert.Equal(t, "vegetarian", res.Preferences["diet"])
}

func TestUpdateProfileKeepsNameWhenOmitted(t *testing.T) {
	repo := newStubUserRepository()
	service := NewUserService(repo)

	userID := uuid.New()
	repo.users[userID.String()] = &entities.User{ID: userID, DisplayName: "Maria"}

	res, err := service.UpdateProfile(context.Background(), domain.UpdateProfileRequest{}, userID.String())
	require.NoError(t, err)
	assert.Equal(t, "Maria", res.DisplayName)
}

func TestGetProfileNotFound(t *testing.T) {
	service := NewUserService(newStubUserRepository())
	_, err := service.GetProfile(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
