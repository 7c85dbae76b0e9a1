package entity

import (
	"time"

	"github.com/google/uuid"
)

type ActivityIntensity string

const (
	ActivityIntensityLow    ActivityIntensity = "Baixa"
	ActivityIntensityMedium ActivityIntensity = "Média"
	ActivityIntensityHigh   ActivityIntensity = "Alta"
)

type Activity struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Name      string
	Intensity ActivityIntensity
	Duration  string
	Emoji     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
