package domain

import "errors"

var (
	ErrNotFound         = errors.New("tip not found")
	ErrInvalidAmount    = errors.New("invalid tip amount")
	ErrInvalidRecipient = errors.New("staff is not a valid recipient for this qr code")
	ErrChargeFailed     = errors.New("payment charge failed")
)
