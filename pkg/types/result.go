package types

const (
	StatusOK     = "OK"
	StatusDrift  = "DRIFT"
	StatusFailed = "FAILED"
)

// TableSummary is the one-line view of a table's extraction used by the CLI
// printer and the HTTP endpoint.
type TableSummary struct {
	Table       string `json:"table"`
	Columns     int    `json:"columns"`
	Rows        int    `json:"rows"`
	DriftIssues int    `json:"drift_issues,omitempty"`
	Status      string `json:"status"`
	Phase       string `json:"phase,omitempty"`
	Error       string `json:"error,omitempty"`
}
