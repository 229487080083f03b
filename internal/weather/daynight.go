package weather

import (
	"strings"
	"time"
)

// Fixed local-hour window used when neither the icon nor sunrise/sunset data
// is available. Both bounds are inclusive.
const (
	DayStartHour = 6
	DayEndHour   = 18
)

// Icon suffixes used by the provider to mark day and night variants.
const (
	IconDaySuffix   = "d"
	IconNightSuffix = "n"
)

// DeriveIsDay prefers the icon suffix, then the sunrise/sunset window, then
// the fixed local-hour window in loc.
func DeriveIsDay(icon string, sunrise, sunset int64, now time.Time, loc *time.Location) bool {
	icon = strings.TrimSpace(icon)
	switch {
	case strings.HasSuffix(icon, IconDaySuffix):
		return true
	case strings.HasSuffix(icon, IconNightSuffix):
		return false
	}

	if sunrise > 0 && sunset > 0 {
		n := now.Unix()
		return n >= sunrise && n <= sunset
	}

	if loc == nil {
		loc = time.UTC
	}
	h := now.In(loc).Hour()
	return h >= DayStartHour && h <= DayEndHour
}

// DeriveIsRain is true when the last hour's rain or snow accumulation is
// positive. A missing field counts as no precipitation.
func DeriveIsRain(p ProviderPayload) bool {
	if p.Rain1h != nil && *p.Rain1h > 0 {
		return true
	}
	return p.Snow1h != nil && *p.Snow1h > 0
}
