package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MVictoriaDoll/NutriChoice/domain"
	"github.com/MVictoriaDoll/NutriChoice/entities"
)

type (
	UserService interface {
		// EnsureUser creates the user row on first contact and touches
		// lastLogin on every subsequent one. Identity itself is established
		// upstream; this only materializes the local profile.
		EnsureUser(ctx context.Context, userID string) error
		GetProfile(ctx context.Context, userID string) (domain.ProfileResponse, error)
		UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest, userID string) (domain.ProfileResponse, error)
	}

	userService struct {
		userRepository UserRepository
	}
)

func NewUserService(userRepository UserRepository) UserService {
	return &userService{userRepository: userRepository}
}

func (s *userService) EnsureUser(ctx context.Context, userID string) error {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.ErrParseUUID
	}

	_, err = s.userRepository.GetUserByID(ctx, userID)
	if err == nil {
		return s.userRepository.TouchLastLogin(ctx, userID)
	}
	if !IsNotFound(err) {
		return err
	}

	return s.userRepository.CreateUser(ctx, &entities.User{
		ID:          userUUID,
		DisplayName: fmt.Sprintf("Guest-%s", userID[:8]),
		Preferences: entities.JSONMap{},
		LastLogin:   time.Now(),
	})
}

func (s *userService) GetProfile(ctx context.Context, userID string) (domain.ProfileResponse, error) {
	user, err := s.userRepository.GetUserWithSummary(ctx, userID)
	if err != nil {
		if IsNotFound(err) {
			return domain.ProfileResponse{}, domain.ErrUserNotFound
		}
		return domain.ProfileResponse{}, err
	}
	return toProfileResponse(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest, userID string) (domain.ProfileResponse, error) {
	user, err := s.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		if IsNotFound(err) {
			return domain.ProfileResponse{}, domain.ErrUserNotFound
		}
		return domain.ProfileResponse{}, err
	}

	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}
	if req.Preferences != nil {
		user.Preferences = req.Preferences
	}
	user.LastLogin = time.Now()

	if err := s.userRepository.UpdateUser(ctx, user); err != nil {
		return domain.ProfileResponse{}, err
	}

	return toProfileResponse(user), nil
}

func toProfileResponse(user *entities.User) domain.ProfileResponse {
	response := domain.ProfileResponse{
		ID:          user.ID.String(),
		DisplayName: user.DisplayName,
		Preferences: user.Preferences,
		LastLogin:   user.LastLogin,
	}

	if user.NutritionSummary != nil {
		response.NutritionSummary = &domain.UserNutritionSummaryResponse{
			NutritionScore:           user.NutritionSummary.NutritionScore,
			FreshFoodsPercentage:     user.NutritionSummary.FreshFoodsPercentage,
			HighSugarItemsPercentage: user.NutritionSummary.HighSugarItemsPercentage,
			ProcessedFoodPercentage:  user.NutritionSummary.ProcessedFoodPercentage,
			GoodNutriScorePercentage: user.NutritionSummary.GoodNutriScorePercentage,
			OverallAiFeedback:        user.NutritionSummary.OverallAiFeedback,
		}
	}

	return response
}
