package session

// cycleQuota counts rule firings within one Fire call and enforces the
// session's cycle limit. It catches runaway forward chaining where rules
// keep re-activating each other.
type cycleQuota struct {
	limit   int
	current int
}

func newCycleQuota(limit int) *cycleQuota {
	return &cycleQuota{limit: limit}
}

// check increments the counter. A limit of 0 disables the quota.
func (q *cycleQuota) check(sessionID string) error {
	q.current++
	if q.limit > 0 && q.current > q.limit {
		return &CycleLimitError{SessionID: sessionID, Cycles: q.current, Limit: q.limit}
	}
	return nil
}
