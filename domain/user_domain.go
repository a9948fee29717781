package domain

import (
	"errors"
	"time"
)

var (
	MessageSuccessGetProfile    = "profile retrieved successfully"
	MessageSuccessUpdateProfile = "profile updated successfully"

	MessageFailedGetProfile    = "failed to retrieve profile"
	MessageFailedUpdateProfile = "failed to update profile"

	ErrUserNotFound = errors.New("user not found")
)

type (
	UpdateProfileRequest struct {
		DisplayName string                 `json:"displayName" validate:"omitempty,max=100"`
		Preferences map[string]interface{} `json:"preferences"`
	}

	ProfileResponse struct {
		ID               string                        `json:"id"`
		DisplayName      string                        `json:"displayName"`
		Preferences      map[string]interface{}        `json:"preferences"`
		LastLogin        time.Time                     `json:"lastLogin"`
		NutritionSummary *UserNutritionSummaryResponse `json:"nutritionSummary,omitempty"`
	}
)
