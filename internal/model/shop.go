package model

import "time"

type Shop struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	TypeID    int64     `gorm:"not null;index" json:"type_id"`
	Images    string    `gorm:"type:text" json:"images"`
	Area      string    `gorm:"type:varchar(64)" json:"area"`
	Address   string    `gorm:"type:varchar(255)" json:"address"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	AvgPrice  int64     `json:"avg_price"`
	Sold      int       `gorm:"not null;default:0" json:"sold"`
	Comments  int       `gorm:"not null;default:0" json:"comments"`
	Score     int       `gorm:"not null;default:0" json:"score"`
	OpenHours string    `gorm:"type:varchar(64)" json:"open_hours"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Shop) TableName() string { return "shops" }

type ShopType struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:varchar(64);not null" json:"name"`
	Icon string `gorm:"type:varchar(255)" json:"icon"`
	Sort int    `gorm:"not null;default:0" json:"sort"`
}

func (ShopType) TableName() string { return "shop_types" }
