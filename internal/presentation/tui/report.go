package tui

import (
	"fmt"
	"strings"
	"time"
)

// ReloadReport builds the markdown summary printed after a reload attempt.
func ReloadReport(target string, generation uint64, took time.Duration, err error) string {
	var b strings.Builder

	if err != nil {
		b.WriteString("## Reload failed\n\n")
		fmt.Fprintf(&b, "- **Target:** `%s`\n", target)
		fmt.Fprintf(&b, "- **Generation:** %d\n", generation)
		fmt.Fprintf(&b, "- **Error:** %v\n", err)
		b.WriteString("\nThe cache stays empty until the next attempt succeeds.\n")
		return b.String()
	}

	b.WriteString("## Reloaded\n\n")
	fmt.Fprintf(&b, "- **Target:** `%s`\n", target)
	fmt.Fprintf(&b, "- **Generation:** %d\n", generation)
	fmt.Fprintf(&b, "- **Took:** %s\n", took.Round(time.Millisecond))
	return b.String()
}
