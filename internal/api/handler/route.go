package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leonmuriithi/transit-core-poc/internal/application"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/route"
)

type RouteHandler struct {
	service RouteServiceInterface
}

func NewRouteHandler(s RouteServiceInterface) *RouteHandler {
	return &RouteHandler{service: s}
}

type StopRequest struct {
	ID         string `json:"id" validate:"required" example:"NRB"`
	Name       string `json:"name" validate:"required" example:"Nairobi"`
	OrderIndex int    `json:"order_index" validate:"min=0" example:"0"`
}

type CreateRouteRequest struct {
	Name  string        `json:"name" validate:"required" example:"Nairobi - Eldoret"`
	Stops []StopRequest `json:"stops" validate:"required,min=2,dive"`
}

type StopResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OrderIndex int    `json:"order_index"`
}

type SegmentResponse struct {
	ID         string `json:"id"`
	FromStopID string `json:"from_stop_id"`
	ToStopID   string `json:"to_stop_id"`
	Position   int    `json:"position"`
}

type RouteResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Stops     []StopResponse    `json:"stops"`
	Segments  []SegmentResponse `json:"segments"`
	CreatedAt time.Time         `json:"created_at"`
}

func toRouteResponse(r *route.Route) RouteResponse {
	stops := make([]StopResponse, len(r.Stops))
	for i, s := range r.Stops {
		stops[i] = StopResponse{ID: s.ID, Name: s.Name, OrderIndex: s.OrderIndex}
	}
	segs := r.Segments()
	segments := make([]SegmentResponse, len(segs))
	for i, seg := range segs {
		segments[i] = SegmentResponse{ID: seg.ID, FromStopID: seg.FromStopID, ToStopID: seg.ToStopID, Position: seg.Position}
	}
	return RouteResponse{ID: r.ID, Name: r.Name, Stops: stops, Segments: segments, CreatedAt: r.CreatedAt}
}

// Create godoc
// @Summary 路線を作成
// @Description 停留所列を持つ路線を登録します
// @Tags routes
// @Accept json
// @Produce json
// @Param request body CreateRouteRequest true "路線情報"
// @Success 201 {object} RouteResponse
// @Failure 400 {object} map[string]string
// @Router /routes [post]
func (h *RouteHandler) Create(c echo.Context) error {
	var req CreateRouteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	stops := make([]application.StopInput, len(req.Stops))
	for i, s := range req.Stops {
		stops[i] = application.StopInput{ID: s.ID, Name: s.Name, OrderIndex: s.OrderIndex}
	}
	r, err := h.service.CreateRoute(c.Request().Context(), application.CreateRouteInput{
		Name: req.Name, Stops: stops,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, toRouteResponse(r))
}

// GetByID godoc
// @Summary 路線を取得
// @Tags routes
// @Produce json
// @Param id path string true "路線ID"
// @Success 200 {object} RouteResponse
// @Failure 404 {object} map[string]string
// @Router /routes/{id} [get]
func (h *RouteHandler) GetByID(c echo.Context) error {
	id := c.Param("id")
	r, err := h.service.GetRoute(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, route.ErrRouteNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toRouteResponse(r))
}

// List godoc
// @Summary 路線一覧を取得
// @Tags routes
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} RouteResponse
// @Router /routes [get]
func (h *RouteHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	routes, err := h.service.ListRoutes(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]RouteResponse, len(routes))
	for i, r := range routes {
		resp[i] = toRouteResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}

type PublishInventoryRequest struct {
	TravelDate string `json:"travel_date" validate:"required,datetime=2006-01-02" example:"2026-09-01"`
	SeatCount  int    `json:"seat_count" validate:"required,min=1" example:"44"`
}

type PublishInventoryResponse struct {
	RouteID      string `json:"route_id"`
	TravelDate   string `json:"travel_date"`
	RecordsCount int    `json:"records_count"`
}

// PublishInventory godoc
// @Summary 運行日の座席区間在庫を公開
// @Description 全座席×全区間のレコードを開放状態で作成します
// @Tags routes
// @Accept json
// @Produce json
// @Param id path string true "路線ID"
// @Param request body PublishInventoryRequest true "在庫情報"
// @Success 201 {object} PublishInventoryResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /routes/{id}/inventory [post]
func (h *RouteHandler) PublishInventory(c echo.Context) error {
	routeID := c.Param("id")
	var req PublishInventoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	count, err := h.service.PublishInventory(c.Request().Context(), application.PublishInventoryInput{
		RouteID: routeID, TravelDate: req.TravelDate, SeatCount: req.SeatCount,
	})
	if err != nil {
		if errors.Is(err, route.ErrRouteNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, PublishInventoryResponse{
		RouteID: routeID, TravelDate: req.TravelDate, RecordsCount: count,
	})
}
