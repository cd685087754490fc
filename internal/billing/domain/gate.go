package billing

// IsPayable decides whether the target due may start a new payment.
// A due is payable only while PENDING and only when no strictly earlier
// period of the same student is still PENDING; captured and waived
// siblings count as cleared. The gate applies to initiating a payment
// order, never to an order already created.
func IsPayable(target *DueRecord, siblings []*DueRecord) bool {
	if target == nil || target.Status != StatusPending {
		return false
	}
	for _, sibling := range siblings {
		if sibling == nil || sibling.ID == target.ID {
			continue
		}
		if sibling.StudentID != target.StudentID {
			continue
		}
		if sibling.Period.Before(target.Period) && sibling.Status == StatusPending {
			return false
		}
	}
	return true
}
