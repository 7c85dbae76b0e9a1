package dto

import (
	"time"

	"github.com/google/uuid"
)

type UserProfileResponse struct {
	Id           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	ActivityGoal *int      `json:"activity_goal,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UpdateProfileRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email        *string `json:"email" validate:"omitempty,email"`
	ActivityGoal *int    `json:"activity_goal" validate:"omitempty,min=0,max=1000"`
}
