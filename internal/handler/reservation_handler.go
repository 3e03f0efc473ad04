package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/parkwise/reservation-service/internal/dto"
	"github.com/parkwise/reservation-service/internal/middleware"
	"github.com/parkwise/reservation-service/internal/service"
)

type ReservationHandler struct {
	svc service.ReservationService
}

func NewReservationHandler(svc service.ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

func (h *ReservationHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreateReservation)
	g.GET("/active", h.GetActive)
	g.GET("/history", h.ListHistory)
	g.POST("/arrival", h.ConfirmArrival)
	g.POST("/complete", h.CompleteParking)
	g.DELETE("/active", h.CancelReservation)
}

func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}

	var req dto.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SpotID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "spot_id is required")
	}

	res, err := h.svc.Reserve(c.Request().Context(), userID, req.SpotID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSpotUnavailable):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrUserHasActiveReservation):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusCreated, dto.ToReservationResponse(res))
}

func (h *ReservationHandler) ConfirmArrival(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}

	res, err := h.svc.ConfirmArrival(c.Request().Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveReservation):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrGracePeriodExpired):
			return echo.NewHTTPError(http.StatusGone, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, dto.ToReservationResponse(res))
}

func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}

	if err := h.svc.Cancel(c.Request().Context(), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveReservation):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ReservationHandler) CompleteParking(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}

	res, err := h.svc.Complete(c.Request().Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveReservation):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotOngoing):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, dto.ToReservationResponse(res))
}

func (h *ReservationHandler) GetActive(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}

	res, err := h.svc.GetActive(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveReservation) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.ToReservationResponse(res))
}

func (h *ReservationHandler) ListHistory(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}

	resp := []dto.ReservationResponse{}
	for res := range h.svc.History(userID) {
		resp = append(resp, dto.ToReservationResponse(&res))
	}

	return c.JSON(http.StatusOK, resp)
}
