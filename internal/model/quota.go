package model

// Quota is a site's monthly ingestion allowance: the number of events
// accepted so far this month and the plan-tier limit.
type Quota struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// Exhausted reports whether ingestion should be rejected. A request is
// accepted only while the pre-increment count is below the limit. A
// non-positive limit means unlimited.
func (q Quota) Exhausted() bool {
	return q.Limit > 0 && q.Used >= q.Limit
}
