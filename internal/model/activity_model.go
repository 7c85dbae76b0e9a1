package model

import (
	"time"

	"github.com/google/uuid"
)

type Activity struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index:idx_activities_user_created,priority:1"`
	User      *User     `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE"`
	Name      string    `gorm:"type:varchar(100);not null"`
	Intensity string    `gorm:"type:varchar(20);not null"`
	Duration  string    `gorm:"type:varchar(50);not null"`
	Emoji     *string   `gorm:"type:varchar(16)"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_activities_user_created,priority:2"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Activity) TableName() string {
	return "activities"
}
