package obstetrics

import (
	"fmt"
	"strings"
)

const placeholder = "--"

func FormatScore(s GTPALScore) string {
	return fmt.Sprintf("G%d T%d P%d A%d L%d", s.G, s.T, s.P, s.A, s.L)
}

func FormatWeeks(w *int) string {
	if w == nil {
		return placeholder
	}
	return fmt.Sprintf("%d wks", *w)
}

func FormatYear(y string) string {
	if strings.TrimSpace(y) == "" {
		return placeholder
	}
	return strings.TrimSpace(y)
}
