package gateway

import (
	"context"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

// Credentials is the decrypted per-venue Midtrans configuration.
type Credentials struct {
	ServerKey  string
	ClientKey  string
	MerchantID string
	Production bool
}

// ChargeResult is the subset of the charge response the tip flow needs.
type ChargeResult struct {
	TransactionID string
	QRString      string
	QRCodeURL     string
	ExpiryTime    string
}

// StatusResult mirrors the fields of a status lookup that drive settlement.
type StatusResult struct {
	OrderID           string
	TransactionID     string
	TransactionStatus string
	FraudStatus       string
	StatusCode        string
	GrossAmount       string
	PaymentType       string
	TransactionTime   string
	SignatureKey      string
}

// Client wraps the Midtrans Core API for a single venue's credentials.
// Venues hold their own keys, so a fresh Client is built per request from
// the decrypted credentials rather than shared process-wide.
type Client struct {
	core coreapi.Client
}

func NewClient(creds Credentials) *Client {
	env := midtrans.Sandbox
	if creds.Production {
		env = midtrans.Production
	}
	c := coreapi.Client{}
	c.New(creds.ServerKey, env)
	return &Client{core: c}
}

// ChargeQRIS opens a QRIS payment for the given order.
func (c *Client) ChargeQRIS(ctx context.Context, orderID string, grossAmount int64) (*ChargeResult, error) {
	req := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeQris,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: grossAmount,
		},
	}
	resp, mErr := c.core.ChargeTransaction(req)
	if mErr != nil {
		return nil, fmt.Errorf("gateway: charge %s: %w", orderID, mErr)
	}

	result := &ChargeResult{
		TransactionID: resp.TransactionID,
		QRString:      resp.QRString,
		ExpiryTime:    resp.ExpiryTime,
	}
	for _, action := range resp.Actions {
		if action.Name == "generate-qr-code" {
			result.QRCodeURL = action.URL
		}
	}
	return result, nil
}

// TransactionStatus fetches the current gateway status for an order.
// Used by the reconciler when a webhook never arrived.
func (c *Client) TransactionStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	resp, mErr := c.core.CheckTransaction(orderID)
	if mErr != nil {
		return nil, fmt.Errorf("gateway: status %s: %w", orderID, mErr)
	}
	return &StatusResult{
		OrderID:           resp.OrderID,
		TransactionID:     resp.TransactionID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		StatusCode:        resp.StatusCode,
		GrossAmount:       resp.GrossAmount,
		PaymentType:       resp.PaymentType,
		TransactionTime:   resp.TransactionTime,
		SignatureKey:      resp.SignatureKey,
	}, nil
}
