package tokenmap

import (
	"fmt"
	"math"
	"strings"
)

// DefaultBarWidth is used when Render gets a non-positive width.
const DefaultBarWidth = 20

// Render draws the map as a bar chart, one row per line.
func Render(m Map, barWidth int) string {
	if barWidth <= 0 {
		barWidth = DefaultBarWidth
	}
	if len(m.Rows) == 0 {
		return ""
	}

	var b strings.Builder
	// Connector state per depth: whether the ancestor at that depth was the
	// last of its siblings.
	var lastAt []bool
	for _, r := range m.Rows {
		for len(lastAt) <= r.Depth {
			lastAt = append(lastAt, false)
		}
		lastAt = lastAt[:r.Depth+1]
		lastAt[r.Depth] = r.IsLast

		var prefix strings.Builder
		for d := 0; d < r.Depth; d++ {
			if lastAt[d] {
				prefix.WriteString("  ")
			} else {
				prefix.WriteString("│ ")
			}
		}
		connector := "├─"
		if r.IsLast {
			connector = "└─"
		}
		name := r.Name
		if r.IsDir {
			name += "/"
		}
		fmt.Fprintf(&b, "%6s %s %5.1f%% %s%s %s\n",
			FormatMapTokens(r.Tokens), bar(r, barWidth), r.Percent, prefix.String(), connector, name)
	}
	return b.String()
}

func bar(r Row, width int) string {
	filled := int(math.Round(r.Percent / 100 * float64(width)))
	if filled > width {
		filled = width
	}
	if filled == 0 && r.Tokens > 0 {
		filled = 1
	}
	fill := "█"
	switch {
	case r.Other:
		fill = "▒"
	case r.IsDir:
		fill = "▓"
	}
	return strings.Repeat(fill, filled) + strings.Repeat("░", width-filled)
}

// FormatMapTokens renders counts as 950, 12K or 2M, rounding to nearest.
func FormatMapTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%dM", (n+500_000)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%dK", (n+500)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatTokens is the compact form used in the tree view: 999, 3.2k, 11k.
func FormatTokens(n int) string {
	switch {
	case n < 1_000:
		return fmt.Sprintf("%d", n)
	case n < 10_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%dk", n/1_000)
	}
}

// FormatCount adds thousands separators: 1234567 becomes 1,234,567.
func FormatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
