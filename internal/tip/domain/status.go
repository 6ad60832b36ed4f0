package domain

import "strings"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusFailed   Status = "FAILED"
	StatusCanceled Status = "CANCELED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether the status closes the tip's lifecycle.
// Notifications arriving for a terminal tip are acknowledged but ignored.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// AllocationState tracks what happened to a paid tip's money.
type AllocationState string

const (
	// AllocationNone is the zero value for tips that have not settled.
	AllocationNone AllocationState = ""
	// AllocationDone means allocation rows were written and balances credited.
	AllocationDone AllocationState = "ALLOCATED"
	// AllocationStranded means the tip is paid but no active pool staff
	// existed at settlement, so the money sits unassigned for manual review.
	AllocationStranded AllocationState = "UNALLOCATED"
)

// MapTransactionStatus translates a Midtrans transaction status pair into
// the tip lifecycle status. A capture only counts as paid once fraud
// screening accepts it. Unrecognized statuses stay pending so a later
// notification or the reconciler can finish the job.
func MapTransactionStatus(transactionStatus, fraudStatus string) Status {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "capture":
		if strings.ToLower(strings.TrimSpace(fraudStatus)) == "accept" {
			return StatusPaid
		}
		return StatusPending
	case "settlement":
		return StatusPaid
	case "pending":
		return StatusPending
	case "deny", "cancel":
		return StatusCanceled
	case "expire":
		return StatusExpired
	case "failure":
		return StatusFailed
	default:
		return StatusPending
	}
}
