package aging

import (
	"encoding/csv"
	"io"
)

// WriteCSV renders the report for spreadsheet handoff. Amounts keep their
// exact decimal text; dates use ISO 8601.
func WriteCSV(w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"Agent", "Total Balance", "0-1 Day", "2-3 Days", "4-7 Days", "8+ Days", "Oldest Collection",
	}); err != nil {
		return err
	}
	for _, r := range report.Rows {
		name := r.AgentName
		if name == "" {
			name = "unknown"
		}
		if err := cw.Write([]string{
			name,
			r.TotalOutstanding.String(),
			r.Bucket0To1.String(),
			r.Bucket2To3.String(),
			r.Bucket4To7.String(),
			r.Bucket8Plus.String(),
			r.OldestCollection.UTC().Format("2006-01-02"),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
