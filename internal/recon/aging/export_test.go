package aging

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	report := &Report{
		Rows: []Row{
			{
				AgentID:          1,
				AgentName:        "Amina",
				TotalOutstanding: dec("1000.00"),
				Bucket0To1:       dec("100.00"),
				Bucket2To3:       dec("200.00"),
				Bucket4To7:       dec("300.00"),
				Bucket8Plus:      dec("400.00"),
				OldestCollection: time.Date(2026, 6, 29, 15, 0, 0, 0, time.UTC),
			},
			{
				AgentID:          2,
				TotalOutstanding: dec("50.00"),
				Bucket0To1:       dec("50.00"),
				OldestCollection: time.Date(2026, 7, 9, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, report))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Agent,Total Balance,0-1 Day,2-3 Days,4-7 Days,8+ Days,Oldest Collection", lines[0])
	require.Equal(t, "Amina,1000,100,200,300,400,2026-06-29", lines[1])
	// Agents without a resolvable name are still exported.
	require.Equal(t, "unknown,50,50,0,0,0,2026-07-09", lines[2])
}

func TestWriteCSVEmptyReport(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, &Report{}))
	require.Equal(t, 1, strings.Count(sb.String(), "\n"))
}
