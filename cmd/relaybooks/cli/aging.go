package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/relaybooks/relaybooks/internal/recon/aging"
)

// AgingCLI bundles the reconciliation maintenance commands.
type AgingCLI struct {
	svc    *aging.Service
	logger *slog.Logger
}

// NewAgingCLI wires the aging command helpers.
func NewAgingCLI(svc *aging.Service, logger *slog.Logger) *AgingCLI {
	return &AgingCLI{svc: svc, logger: logger}
}

// Refresh rebuilds the aging snapshot and prints a summary per agent.
func (c *AgingCLI) Refresh(ctx context.Context, out io.Writer) error {
	report, err := c.svc.RefreshAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range report.Rows {
		fmt.Fprintf(out, "agent %d (%s): outstanding %s, 8+ days %s\n",
			r.AgentID, r.AgentName, r.TotalOutstanding.String(), r.Bucket8Plus.String())
	}
	fmt.Fprintf(out, "%d agents with outstanding balances\n", len(report.Rows))
	return nil
}

// AutoBlock runs the overdue sweep once, attributing the blocks to actorID,
// and prints how many agents were blocked.
func (c *AgingCLI) AutoBlock(ctx context.Context, actorID int64, out io.Writer) error {
	count, err := c.svc.AutoBlockOverdueAgents(ctx, actorID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d agents blocked\n", count)
	return nil
}

// ExportCSV writes the latest aging report as CSV.
func (c *AgingCLI) ExportCSV(ctx context.Context, out io.Writer) error {
	report, err := c.svc.Report(ctx)
	if err != nil {
		return err
	}
	return aging.WriteCSV(out, report)
}
