package model

import "time"

type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Phone     string    `gorm:"type:varchar(16);uniqueIndex" json:"phone"`
	NickName  string    `gorm:"type:varchar(64)" json:"nick_name"`
	Icon      string    `gorm:"type:varchar(255)" json:"icon"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
