package domain

import "context"

type CreateTipRequest struct {
	QRCodeID  string `json:"qr_code_id" binding:"required"`
	StaffID   string `json:"staff_id"`
	Amount    int64  `json:"amount" binding:"required"`
	GuestName string `json:"guest_name"`
	Message   string `json:"message"`
}

type CreateTipResponse struct {
	Tip       *Tip   `json:"tip"`
	QRString  string `json:"qr_string"`
	QRCodeURL string `json:"qr_code_url"`
	ExpiresAt string `json:"expires_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateTipRequest) (*CreateTipResponse, error)
	GetByOrderID(ctx context.Context, orderID string) (*Tip, error)
}
