package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/leonmuriithi/transit-core-poc/internal/application"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/booking"
	"github.com/leonmuriithi/transit-core-poc/internal/pkg/logger"
)

type PaymentHandler struct {
	service BookingServiceInterface
}

func NewPaymentHandler(s BookingServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

// DarajaCallbackRequest はM-Pesa Darajaのコールバックボディ
// 突合キーはコールバックURLのクエリ account_ref で届く
type DarajaCallbackRequest struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// receiptNumber はコールバックメタデータからM-Pesaレシート番号を取り出す
func (r *DarajaCallbackRequest) receiptNumber() string {
	for _, item := range r.Body.StkCallback.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

type PaymentCallbackResponse struct {
	TicketID      string `json:"ticket_id"`
	PaymentStatus string `json:"payment_status"`
}

// MpesaCallback godoc
// @Summary M-Pesa決済コールバックを処理
// @Description 決済結果に応じて予約を確定または解放します
// @Tags payments
// @Accept json
// @Produce json
// @Param account_ref query string true "決済突合キー"
// @Param request body DarajaCallbackRequest true "Darajaコールバック"
// @Success 200 {object} PaymentCallbackResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /payments/mpesa/callback [post]
func (h *PaymentHandler) MpesaCallback(c echo.Context) error {
	accountRef := c.QueryParam("account_ref")
	if accountRef == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_ref は必須です")
	}
	var req DarajaCallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なコールバック")
	}

	outcome := application.OutcomeFailure
	if req.Body.StkCallback.ResultCode == 0 {
		outcome = application.OutcomeSuccess
	}

	b, err := h.service.HandlePaymentOutcome(c.Request().Context(), application.PaymentNotification{
		AccountReference: accountRef,
		Outcome:          outcome,
		ReceiptNumber:    req.receiptNumber(),
	})
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if errors.Is(err, application.ErrReconciliationRequired) {
			// ゲートウェイには受領を返しつつ、突合事案であることを応答に含める
			logger.Warn("突合対応が必要な決済コールバック",
				zap.String("account_reference", accountRef), zap.Error(err))
			return c.JSON(http.StatusOK, map[string]string{
				"result": "reconciliation_required",
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, PaymentCallbackResponse{
		TicketID:      b.TicketID,
		PaymentStatus: string(b.PaymentStatus),
	})
}
