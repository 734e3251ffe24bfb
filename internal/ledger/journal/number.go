package journal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry numbers follow JE-YYYYMMDD-NNNNN with a 5-digit sequence that
// restarts each calendar day. The sequence is gap-tolerant: it is derived
// from the maximum existing number for the day, not a counter.

// DayPrefix returns the entry number prefix for t's UTC calendar day.
func DayPrefix(t time.Time) string {
	return "JE-" + t.UTC().Format("20060102") + "-"
}

// FormatEntryNumber renders the entry number for a day and sequence.
func FormatEntryNumber(t time.Time, seq int) string {
	return fmt.Sprintf("%s%05d", DayPrefix(t), seq)
}

// ParseSequence extracts the numeric suffix from an entry number. It returns
// false when the suffix is not parseable.
func ParseSequence(entryNumber string) (int, bool) {
	parts := strings.Split(entryNumber, "-")
	if len(parts) < 3 {
		return 0, false
	}
	seq, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
