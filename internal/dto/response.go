package dto

import (
	"time"

	"github.com/parkwise/reservation-service/internal/models"
)

type ReservationResponse struct {
	ID               uint                     `json:"id"`
	UserID           string                   `json:"user_id"`
	SpotID           uint                     `json:"spot_id"`
	SpotNumber       string                   `json:"spot_number"`
	ParkingName      string                   `json:"parking_name"`
	ParkingAddress   string                   `json:"parking_address"`
	LevelNumber      int                      `json:"level_number"`
	HourlyRate       float64                  `json:"hourly_rate"`
	Status           models.ReservationStatus `json:"status"`
	ReservationStart time.Time                `json:"reservation_start"`
	ParkingStart     *time.Time               `json:"parking_start,omitempty"`
	ParkingEnd       *time.Time               `json:"parking_end,omitempty"`
	BilledHours      *int                     `json:"billed_hours,omitempty"`
	Cost             *float64                 `json:"cost,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToReservationResponse(r *models.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:               r.ID,
		UserID:           r.UserID,
		SpotID:           r.SpotID,
		SpotNumber:       r.SpotNumber,
		ParkingName:      r.ParkingName,
		ParkingAddress:   r.ParkingAddress,
		LevelNumber:      r.LevelNumber,
		HourlyRate:       r.HourlyRate,
		Status:           r.Status,
		ReservationStart: r.ReservationStart,
		ParkingStart:     r.ParkingStart,
		ParkingEnd:       r.ParkingEnd,
		BilledHours:      r.BilledHours,
		Cost:             r.Cost,
	}
}
