package application

import "context"

// PaymentOutcome は決済ゲートウェイからの非同期通知の結果を表す
type PaymentOutcome string

const (
	OutcomeSuccess PaymentOutcome = "SUCCESS"
	OutcomeFailure PaymentOutcome = "FAILURE"
)

// PaymentRequest はプッシュ決済の開始要求
type PaymentRequest struct {
	Amount           int
	PayerPhone       string
	AccountReference string
}

// PaymentNotification はゲートウェイからの非同期通知
// AccountReference で予約と突合する
type PaymentNotification struct {
	AccountReference string
	Outcome          PaymentOutcome
	ReceiptNumber    string
}

// PaymentGateway は外部決済コラボレーターのインターフェース
// コアはこの形だけに依存し、特定ゲートウェイのワイヤ形式には依存しない
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, p PaymentRequest) error
}
