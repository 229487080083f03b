// Package registry maps locality names to coordinates and the national
// meteorological station that reports irradiance for them.
package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/greensync-weather/internal/weather"
)

// DefaultCountry is appended to custom locality names when geocoding.
const DefaultCountry = "South Korea"

type entry struct {
	loc     weather.Locality
	aliases []string
}

// Builtin cities with their ASOS station numbers.
var builtin = []entry{
	{weather.Locality{Name: "seoul", Lat: 37.5665, Lon: 126.9780, StationID: 108}, []string{"서울"}},
	{weather.Locality{Name: "busan", Lat: 35.1796, Lon: 129.0756, StationID: 159}, []string{"부산"}},
	{weather.Locality{Name: "daegu", Lat: 35.8714, Lon: 128.6014, StationID: 143}, []string{"대구"}},
	{weather.Locality{Name: "incheon", Lat: 37.4563, Lon: 126.7052, StationID: 112}, []string{"인천"}},
	{weather.Locality{Name: "gwangju", Lat: 35.1595, Lon: 126.8526, StationID: 156}, []string{"광주"}},
	{weather.Locality{Name: "daejeon", Lat: 36.3504, Lon: 127.3845, StationID: 133}, []string{"대전"}},
	{weather.Locality{Name: "ulsan", Lat: 35.5384, Lon: 129.3114, StationID: 152}, []string{"울산"}},
	{weather.Locality{Name: "sejong", Lat: 36.4800, Lon: 127.2890, StationID: 129}, []string{"세종"}},
	{weather.Locality{Name: "suwon", Lat: 37.2636, Lon: 127.0286, StationID: 119}, []string{"수원"}},
	{weather.Locality{Name: "changwon", Lat: 35.2272, Lon: 128.6811, StationID: 155}, []string{"창원"}},
	{weather.Locality{Name: "jeju", Lat: 33.4996, Lon: 126.5312, StationID: 184}, []string{"제주"}},
}

// GeocodeFunc resolves a place name to coordinates.
type GeocodeFunc func(city, country string) (lat, lon float64, err error)

// GoogleGeocoder returns a GeocodeFunc backed by the Google Geocoding API.
func GoogleGeocoder(apiKey string) GeocodeFunc {
	return func(city, country string) (float64, float64, error) {
		geocoder.ApiKey = apiKey
		location, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
		if err != nil {
			return 0, 0, fmt.Errorf("geocode %q: %w", city, err)
		}
		return location.Latitude, location.Longitude, nil
	}
}

// Registry is a concurrency-safe, read-mostly locality table.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]weather.Locality
	aliases map[string]string
}

// New returns a Registry preloaded with the builtin cities.
func New() *Registry {
	r := &Registry{
		byName:  make(map[string]weather.Locality),
		aliases: make(map[string]string),
	}
	for _, e := range builtin {
		// Builtin entries are known to be valid.
		_ = r.Register(e.loc, e.aliases...)
	}
	return r
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds or replaces a locality and its aliases.
func (r *Registry) Register(loc weather.Locality, aliases ...string) error {
	loc.Name = normalize(loc.Name)
	if loc.Name == "" {
		return fmt.Errorf("locality name is required")
	}
	if err := weather.ValidateLocality(loc); err != nil {
		return fmt.Errorf("locality %q: %w", loc.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[loc.Name] = loc
	for _, a := range aliases {
		if a = normalize(a); a != "" {
			r.aliases[a] = loc.Name
		}
	}
	return nil
}

// Lookup returns the locality registered under name or one of its aliases.
func (r *Registry) Lookup(name string) (weather.Locality, error) {
	key := normalize(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	loc, ok := r.byName[key]
	if !ok {
		return weather.Locality{}, fmt.Errorf("%w: %q", weather.ErrUnknownLocality, name)
	}
	return loc, nil
}

// Names returns the canonical locality names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CustomLocality is a user-defined locality parsed from configuration.
// HasCoords is false when coordinates must be geocoded.
type CustomLocality struct {
	Name      string
	StationID int
	Lat       float64
	Lon       float64
	HasCoords bool
}

// ParseCustomLocalities parses a comma-separated list of
// "name:stationId" or "name:stationId:lat:lon" entries.
func ParseCustomLocalities(s string) ([]CustomLocality, error) {
	var out []CustomLocality
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) != 2 && len(parts) != 4 {
			return nil, fmt.Errorf("custom locality %q: want name:stationId[:lat:lon]", raw)
		}

		station, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("custom locality %q: invalid station id: %w", raw, err)
		}
		c := CustomLocality{Name: strings.TrimSpace(parts[0]), StationID: station}

		if len(parts) == 4 {
			if c.Lat, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err != nil {
				return nil, fmt.Errorf("custom locality %q: invalid latitude: %w", raw, err)
			}
			if c.Lon, err = strconv.ParseFloat(strings.TrimSpace(parts[3]), 64); err != nil {
				return nil, fmt.Errorf("custom locality %q: invalid longitude: %w", raw, err)
			}
			c.HasCoords = true
		}
		out = append(out, c)
	}
	return out, nil
}

// AddCustom registers custom localities, geocoding those without
// coordinates. geocode may be nil when every entry carries coordinates.
func (r *Registry) AddCustom(customs []CustomLocality, geocode GeocodeFunc) error {
	for _, c := range customs {
		if !c.HasCoords {
			if geocode == nil {
				return fmt.Errorf("custom locality %q has no coordinates and no geocoder is configured", c.Name)
			}
			lat, lon, err := geocode(c.Name, DefaultCountry)
			if err != nil {
				return err
			}
			c.Lat, c.Lon = lat, lon
		}
		loc := weather.Locality{Name: c.Name, Lat: c.Lat, Lon: c.Lon, StationID: c.StationID}
		if err := r.Register(loc); err != nil {
			return err
		}
	}
	return nil
}
