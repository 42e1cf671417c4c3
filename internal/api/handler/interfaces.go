package handler

import (
	"context"

	"github.com/leonmuriithi/transit-core-poc/internal/application"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/booking"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/route"
)

// RouteServiceInterface は路線サービスのインターフェース
type RouteServiceInterface interface {
	CreateRoute(ctx context.Context, input application.CreateRouteInput) (*route.Route, error)
	GetRoute(ctx context.Context, id string) (*route.Route, error)
	ListRoutes(ctx context.Context, limit, offset int) ([]*route.Route, error)
	PublishInventory(ctx context.Context, input application.PublishInventoryInput) (int, error)
}

// AvailabilityServiceInterface は空き状況サービスのインターフェース
type AvailabilityServiceInterface interface {
	GetSeatAvailability(ctx context.Context, routeID, travelDate string, seatNumber int) ([]*inventory.SeatSegment, error)
	QuerySegmentStatus(ctx context.Context, routeID, travelDate string, seatNumber int, boardingStopID, dropOffStopID string) ([]*inventory.SeatSegment, error)
	CountOpenSegments(ctx context.Context, routeID, travelDate string) (int, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	GetBookingByTicketID(ctx context.Context, ticketID string) (*booking.Booking, error)
	GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error)
	HandlePaymentOutcome(ctx context.Context, n application.PaymentNotification) (*booking.Booking, error)
}
