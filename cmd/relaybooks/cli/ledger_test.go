package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoidEntryRejectsNonPositiveID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewLedgerCLI(nil, nil, nil, nil, logger)

	err := c.VoidEntry(context.Background(), 0)
	require.ErrorContains(t, err, "id must be positive")

	err = c.VoidEntry(context.Background(), -7)
	require.ErrorContains(t, err, "id must be positive")
}
