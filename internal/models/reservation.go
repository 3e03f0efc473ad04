package models

import "time"

type ReservationStatus string

const (
	StatusPendingArrival ReservationStatus = "pending_arrival"
	StatusOngoing        ReservationStatus = "ongoing"
	StatusCompleted      ReservationStatus = "completed"
	StatusCancelled      ReservationStatus = "cancelled"
	StatusExpired        ReservationStatus = "expired"
)

// Terminal reports whether the status is a final, immutable one.
func (s ReservationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Reservation is one parking session, from booking through completion.
// Spot and pricing fields are snapshotted from the catalog at creation so
// history stays accurate even if the catalog changes later.
type Reservation struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         string `gorm:"not null;index" json:"user_id"`
	SpotID         uint   `gorm:"not null" json:"spot_id"`
	SpotNumber     string `json:"spot_number"`
	ParkingName    string `json:"parking_name"`
	ParkingAddress string `json:"parking_address"`
	LevelNumber    int    `json:"level_number"`

	HourlyRate float64           `json:"hourly_rate"`
	Status     ReservationStatus `gorm:"type:varchar(20);not null" json:"status"`

	ReservationStart time.Time  `json:"reservation_start"`
	ParkingStart     *time.Time `json:"parking_start,omitempty"`
	ParkingEnd       *time.Time `json:"parking_end,omitempty"`

	BilledHours *int     `json:"billed_hours,omitempty"`
	Cost        *float64 `json:"cost,omitempty"`
}

// Active reports whether the reservation still occupies the user's
// single active slot.
func (r *Reservation) Active() bool {
	return !r.Status.Terminal()
}
