package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateActivityRequest struct {
	Name      string  `json:"name" validate:"required,min=1,max=100"`
	Intensity string  `json:"intensity" validate:"required,oneof=Baixa Média Alta"`
	Duration  string  `json:"duration" validate:"required,min=1,max=50"`
	Emoji     *string `json:"emoji" validate:"omitempty,max=16"`
}

type UpdateActivityRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=100"`
	Intensity *string `json:"intensity" validate:"omitempty,oneof=Baixa Média Alta"`
	Duration  *string `json:"duration" validate:"omitempty,min=1,max=50"`
	Emoji     *string `json:"emoji" validate:"omitempty,max=16"`
}

type ActivityResponse struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Intensity string    `json:"intensity"`
	Duration  string    `json:"duration"`
	Emoji     *string   `json:"emoji,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ActivityStatsResponse struct {
	TotalActivities    int64               `json:"total_activities"`
	ActivitiesLastWeek int64               `json:"activities_last_week"`
	RecentActivities   []*ActivityResponse `json:"recent_activities"`
}

// ActivityCreatedMessage travels on the in-process bus from the activity
// service to the goal evaluation worker.
type ActivityCreatedMessage struct {
	ActivityId uuid.UUID `json:"activity_id"`
	UserId     uuid.UUID `json:"user_id"`
}
