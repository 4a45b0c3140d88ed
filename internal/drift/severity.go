package drift

// Centralized severity and message helpers for shape mismatches between a
// table's column list and its rows.
// Rules:
// - BLOCK when data for a listed column is missing
// - WARN when rows carry data the column list does not describe
// - INFO for everything else

const (
	SeverityInfo  = "INFO"
	SeverityWarn  = "WARN"
	SeverityBlock = "BLOCK"
)

// Change kinds supported:
// "column_added", "column_removed", "columns_missing"
func SeverityForChange(kind string) string {
	switch kind {
	case "column_removed":
		return SeverityBlock
	case "column_added", "columns_missing":
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// MessageForChange returns a concise message for the given change kind.
func MessageForChange(kind string) string {
	switch kind {
	case "column_added":
		return "present in rows but not in column list (added after column fetch?)"
	case "column_removed":
		return "listed column missing from rows (dropped after column fetch?)"
	case "columns_missing":
		return "rows returned but no columns listed"
	default:
		return ""
	}
}
