package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
)

type AvailabilityHandler struct {
	service AvailabilityServiceInterface
}

func NewAvailabilityHandler(s AvailabilityServiceInterface) *AvailabilityHandler {
	return &AvailabilityHandler{service: s}
}

type SeatSegmentResponse struct {
	SegmentID     string     `json:"segment_id"`
	Position      int        `json:"position"`
	Status        string     `json:"status"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	PaymentStatus string     `json:"payment_status"`
}

func toSeatSegmentResponses(records []*inventory.SeatSegment) []SeatSegmentResponse {
	resp := make([]SeatSegmentResponse, len(records))
	for i, rec := range records {
		resp[i] = SeatSegmentResponse{
			SegmentID:     rec.SegmentID,
			Position:      rec.Position,
			Status:        string(rec.Status),
			LockedAt:      rec.LockedAt,
			PaymentStatus: string(rec.PaymentStatus),
		}
	}
	return resp
}

// GetBySeat godoc
// @Summary 座席の区間別空き状況を取得
// @Tags availability
// @Produce json
// @Param id path string true "路線ID"
// @Param date query string true "運行日 (YYYY-MM-DD)"
// @Param seat query int true "座席番号"
// @Success 200 {array} SeatSegmentResponse
// @Failure 400 {object} map[string]string
// @Router /routes/{id}/inventory/seat [get]
func (h *AvailabilityHandler) GetBySeat(c echo.Context) error {
	routeID := c.Param("id")
	travelDate := c.QueryParam("date")
	seatNumber, err := strconv.Atoi(c.QueryParam("seat"))
	if err != nil || seatNumber <= 0 || travelDate == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "運行日と座席番号は必須です")
	}
	records, err := h.service.GetSeatAvailability(c.Request().Context(), routeID, travelDate, seatNumber)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toSeatSegmentResponses(records))
}

type OpenCountResponse struct {
	RouteID    string `json:"route_id"`
	TravelDate string `json:"travel_date"`
	OpenCount  int    `json:"open_count"`
}

// CountOpen godoc
// @Summary 運行日の開放区間数を取得
// @Tags availability
// @Produce json
// @Param id path string true "路線ID"
// @Param date query string true "運行日 (YYYY-MM-DD)"
// @Success 200 {object} OpenCountResponse
// @Failure 400 {object} map[string]string
// @Router /routes/{id}/inventory/open-count [get]
func (h *AvailabilityHandler) CountOpen(c echo.Context) error {
	routeID := c.Param("id")
	travelDate := c.QueryParam("date")
	if travelDate == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "運行日は必須です")
	}
	count, err := h.service.CountOpenSegments(c.Request().Context(), routeID, travelDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, OpenCountResponse{
		RouteID: routeID, TravelDate: travelDate, OpenCount: count,
	})
}
