package enums

import "fmt"

// DisputeStatus tracks the lifecycle of an order dispute.
type DisputeStatus string

const (
	DisputeStatusOpen                  DisputeStatus = "open"
	DisputeStatusPendingVendorResponse DisputeStatus = "pending_vendor_response"
	DisputeStatusPendingAdminReview    DisputeStatus = "pending_admin_review"
	DisputeStatusResolved              DisputeStatus = "resolved"
	DisputeStatusClosed                DisputeStatus = "closed"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusPendingVendorResponse,
	DisputeStatusPendingAdminReview,
	DisputeStatusResolved,
	DisputeStatusClosed,
}

// String implements fmt.Stringer.
func (d DisputeStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the dispute accepts no further mutation.
func (d DisputeStatus) IsTerminal() bool {
	return d == DisputeStatusClosed
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}
