package domain

import (
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrRecipientNotAllowed = errors.New("staff is not a recipient of this qr code")

// ResolveRecipient decides who a new tip is frozen to, once, at creation.
// Precedence: a staff member bound to an INDIVIDUAL code always wins, then
// the guest's explicit pick, otherwise nil and the tip goes to the venue
// pool at settlement.
func ResolveRecipient(code *QRCode, guestPick *snowflake.ID) (*snowflake.ID, error) {
	codeType, err := NormalizeType(string(code.Type))
	if err != nil {
		return nil, err
	}

	if codeType == TypeIndividual && code.StaffID != nil {
		id := *code.StaffID
		return &id, nil
	}

	if guestPick != nil {
		if len(code.Recipients) > 0 && !isRecipient(code.Recipients, *guestPick) {
			return nil, ErrRecipientNotAllowed
		}
		id := *guestPick
		return &id, nil
	}

	return nil, nil
}

func isRecipient(recipients []Recipient, staffID snowflake.ID) bool {
	for _, r := range recipients {
		if r.StaffID == staffID {
			return true
		}
	}
	return false
}
