package model

import "time"

// VectorIndex registers an index table together with the settings it was created with.
type VectorIndex struct {
	Name      string    `gorm:"type:varchar(63);primaryKey"`
	Dimension int       `gorm:"not null"`
	Metric    string    `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (VectorIndex) TableName() string {
	return "vector_indexes"
}
