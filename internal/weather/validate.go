package weather

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/greensync-weather/internal/common"
)

var validate = validator.New()

// ValidateLocality checks coordinate ranges and the station id.
func ValidateLocality(loc Locality) error {
	if err := validate.Struct(loc); err != nil {
		return fmt.Errorf("invalid locality %q: %w", loc.Name, err)
	}
	return nil
}

// ValidateReading enforces the storage rules for a CanonicalReading.
func ValidateReading(r CanonicalReading) error {
	if !common.IsStamp(r.ObservationTime) {
		return fmt.Errorf("invalid reading: observation time %q is not YYYYMMDDHHmm", r.ObservationTime)
	}
	for name, v := range map[string]float64{
		"windDirection": r.WindDirection,
		"windSpeed":     r.WindSpeed,
		"outsideTemp":   r.OutsideTemp,
		"dewPoint":      r.DewPoint,
		"insolation":    r.Insolation,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid reading: %s is not finite", name)
		}
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid reading: %w", err)
	}
	return nil
}
