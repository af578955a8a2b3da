package billing

import "time"

// DisplayStatus is the presentation status of a payment.
type DisplayStatus string

const (
	DisplayPaid      DisplayStatus = "paid"
	DisplayPending   DisplayStatus = "pending"
	DisplayOverdue   DisplayStatus = "overdue"
	DisplayCancelled DisplayStatus = "cancelled"
)

// DefaultOverdueAfter is how long past the due date an unpaid bill stays pending.
const DefaultOverdueAfter = 30 * 24 * time.Hour

// DeriveStatus maps the stored status and due date to a display status. It
// never changes the payment.
func DeriveStatus(p Payment, now time.Time, overdueAfter time.Duration) DisplayStatus {
	switch p.Status {
	case StatusCancelled:
		return DisplayCancelled
	case StatusPaid:
		return DisplayPaid
	case StatusOverdue:
		return DisplayOverdue
	}
	if now.After(p.PayDate.Add(overdueAfter)) {
		return DisplayOverdue
	}
	return DisplayPending
}
