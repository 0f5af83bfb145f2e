package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// FmtSci formats a physical quantity with four significant digits.
func FmtSci(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

// FmtVoigt formats a Voigt vector as "[xx yy zz yz xz xy]".
func FmtVoigt(v tensor.Vector6) string {
	parts := make([]string, len(v))
	for i, c := range v {
		parts[i] = FmtSci(c)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// FmtFraction formats an interpolation fraction as a percentage.
func FmtFraction(x float64) string {
	return fmt.Sprintf("%.1f%%", 100*x)
}

// FmtDuration formats a duration as "Xm Ys", "Ys" or, below a second, "Nms".
func FmtDuration(d time.Duration) string {
	if d > 0 && d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
