package dto

type CreateReservationRequest struct {
	SpotID uint `json:"spot_id"`
}
