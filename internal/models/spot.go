package models

import "time"

type SpotStatus string

const (
	SpotFree     SpotStatus = "free"
	SpotReserved SpotStatus = "reserved"
	SpotOccupied SpotStatus = "occupied"
)

// Spot is the local read model of a catalog parking spot, kept in sync
// by consuming spot.* messages from the catalog service.
type Spot struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SpotNumber     string     `json:"spot_number"`
	ParkingName    string     `json:"parking_name"`
	ParkingAddress string     `json:"parking_address"`
	LevelNumber    int        `json:"level_number"`
	HourlyRate     float64    `json:"hourly_rate"`
	Status         SpotStatus `gorm:"type:varchar(20);not null;default:'free'" json:"status"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
