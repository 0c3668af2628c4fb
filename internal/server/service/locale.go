package service

import (
	"fmt"
	"strings"
	"time"
)

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthNames returns the month formatter for a locale. "en" (or empty)
// uses Go's English names and "id" the Indonesian ones.
func MonthNames(locale string) (func(time.Month) string, error) {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "", "en":
		return time.Month.String, nil
	case "id":
		return indonesianMonth, nil
	default:
		return nil, fmt.Errorf("unsupported month locale %q", locale)
	}
}

func indonesianMonth(m time.Month) string {
	if m < time.January || m > time.December {
		return m.String()
	}
	return indonesianMonths[m-1]
}
