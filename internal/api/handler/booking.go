package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leonmuriithi/transit-core-poc/internal/application"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/booking"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/route"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type CreateBookingRequest struct {
	PassengerName  string `json:"passenger_name" validate:"required" example:"Jane Wanjiru"`
	RouteID        string `json:"route_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	TravelDate     string `json:"travel_date" validate:"required,datetime=2006-01-02" example:"2026-09-01"`
	SeatNumber     int    `json:"seat_number" validate:"required,min=1" example:"7"`
	BoardingStopID string `json:"boarding_stop_id" validate:"required" example:"NRB"`
	DropOffStopID  string `json:"drop_off_stop_id" validate:"required" example:"NKR"`
	Amount         int    `json:"amount" validate:"required,min=1" example:"1200"`
	PayerPhone     string `json:"payer_phone" validate:"required" example:"254712345678"`
	IdempotencyKey string `json:"idempotency_key" validate:"required" example:"order-2026-001"`
}

type BookingResponse struct {
	TicketID         string     `json:"ticket_id"`
	AccountReference string     `json:"account_reference"`
	PassengerName    string     `json:"passenger_name"`
	RouteID          string     `json:"route_id"`
	TravelDate       string     `json:"travel_date"`
	SeatNumber       int        `json:"seat_number"`
	BoardingStopID   string     `json:"boarding_stop_id"`
	DropOffStopID    string     `json:"drop_off_stop_id"`
	SegmentIDs       []string   `json:"segment_ids"`
	PaymentStatus    string     `json:"payment_status"`
	ReceiptNumber    *string    `json:"receipt_number,omitempty"`
	Amount           int        `json:"amount"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		TicketID: b.TicketID, AccountReference: b.AccountReference,
		PassengerName: b.PassengerName, RouteID: b.RouteID, TravelDate: b.TravelDate,
		SeatNumber: b.SeatNumber, BoardingStopID: b.BoardingStopID, DropOffStopID: b.DropOffStopID,
		SegmentIDs: b.SegmentIDs, PaymentStatus: string(b.PaymentStatus),
		ReceiptNumber: b.ReceiptNumber, Amount: b.Amount,
		ExpiresAt: b.ExpiresAt, ConfirmedAt: b.ConfirmedAt, CreatedAt: b.CreatedAt,
	}
}

// Create godoc
// @Summary 予約を作成
// @Description 旅程が占有する区間をロックし、STKプッシュを送信します
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string "区間が既に確保済み"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		UserID: userID, PassengerName: req.PassengerName,
		RouteID: req.RouteID, TravelDate: req.TravelDate, SeatNumber: req.SeatNumber,
		BoardingStopID: req.BoardingStopID, DropOffStopID: req.DropOffStopID,
		Amount: req.Amount, PayerPhone: req.PayerPhone, IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		// 競合は 409 で返し、不正リクエストや一時障害と区別できるようにする
		if errors.Is(err, inventory.ErrSegmentConflict) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		if errors.Is(err, booking.ErrIdempotencyKeyAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		if errors.Is(err, route.ErrUnknownStop) || errors.Is(err, route.ErrInvalidInterval) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, route.ErrRouteNotFound) || errors.Is(err, inventory.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByTicketID godoc
// @Summary チケットIDから予約を取得
// @Tags bookings
// @Produce json
// @Param ticket_id path string true "チケットID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} map[string]string
// @Router /bookings/{ticket_id} [get]
func (h *BookingHandler) GetByTicketID(c echo.Context) error {
	ticketID := c.Param("ticket_id")
	b, err := h.service.GetBookingByTicketID(c.Request().Context(), ticketID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetUserBookings godoc
// @Summary ユーザーの予約一覧を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Failure 401 {object} map[string]string
// @Router /bookings [get]
func (h *BookingHandler) GetUserBookings(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.service.GetUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}
