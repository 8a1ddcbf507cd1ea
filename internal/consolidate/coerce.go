package consolidate

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quartier-data/listings-cli/internal/model"
)

// saneNumericLimit rejects absurd magnitudes that survive parsing, like
// concatenated phone numbers landing in a price column.
const saneNumericLimit = 1e12

// dateFormats are the accepted input layouts, tried in order. Output is
// always normalized to dateLayout.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
}

const dateLayout = "2006-01-02"

// currencyStripper removes currency symbols and the space variants used as
// thousands separators in French-formatted amounts.
var currencyStripper = strings.NewReplacer(
	"$", "", "€", "", "£", "", "CAD", "", "USD", "",
	" ", "", " ", "", " ", "",
)

// coerce applies the strategy's type coercion to a raw cell value. ok=false
// means the value is unusable for this strategy and the consolidator moves
// on to the next-priority source.
func coerce(strategy model.MergeStrategy, raw any) (any, bool) {
	if raw == nil {
		return nil, false
	}
	switch strategy {
	case model.StrategyNumeric:
		return coerceNumeric(raw)
	case model.StrategyCategorical, model.StrategyText:
		return coerceText(raw)
	case model.StrategyDate:
		return coerceDate(raw)
	case model.StrategyGeoCoord:
		return coerceGeo(raw)
	case model.StrategyURL:
		return coerceURL(raw)
	}
	return nil, false
}

func coerceNumeric(raw any) (any, bool) {
	switch v := raw.(type) {
	case float64:
		return gateNumeric(v)
	case float32:
		return gateNumeric(float64(v))
	case int:
		return gateNumeric(float64(v))
	case int64:
		return gateNumeric(float64(v))
	case string:
		s := currencyStripper.Replace(strings.TrimSpace(v))
		if s == "" {
			return nil, false
		}
		// French decimals use a comma; a lone comma with no dot is the
		// decimal separator, otherwise commas are thousands separators.
		if strings.Contains(s, ",") {
			if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
				s = strings.Replace(s, ",", ".", 1)
			} else {
				s = strings.ReplaceAll(s, ",", "")
			}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return gateNumeric(f)
	}
	return nil, false
}

func gateNumeric(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= saneNumericLimit {
		return nil, false
	}
	return f, true
}

func coerceText(raw any) (any, bool) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64, float32, int, int64, bool:
		s = fmt.Sprintf("%v", v)
	default:
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	return s, true
}

func coerceDate(raw any) (any, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.Format(dateLayout), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, false
		}
		for _, layout := range dateFormats {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(dateLayout), true
			}
		}
	}
	return nil, false
}

// coerceGeo accepts a nested geo object, a two-element array, a "lat,lng"
// string, or an already resolved GeoValue.
func coerceGeo(raw any) (any, bool) {
	switch v := raw.(type) {
	case model.GeoValue:
		return gateGeo(v.Lat, v.Lng)
	case map[string]any:
		lat, okLat := geoComponent(v, "lat", "latitude")
		lng, okLng := geoComponent(v, "lng", "lon", "long", "longitude")
		if !okLat || !okLng {
			return nil, false
		}
		return gateGeo(lat, lng)
	case []any:
		if len(v) != 2 {
			return nil, false
		}
		lat, okLat := toFloat(v[0])
		lng, okLng := toFloat(v[1])
		if !okLat || !okLng {
			return nil, false
		}
		return gateGeo(lat, lng)
	case []float64:
		if len(v) != 2 {
			return nil, false
		}
		return gateGeo(v[0], v[1])
	case string:
		parts := strings.Split(v, ",")
		if len(parts) != 2 {
			return nil, false
		}
		lat, errA := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lng, errB := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errA != nil || errB != nil {
			return nil, false
		}
		return gateGeo(lat, lng)
	}
	return nil, false
}

func geoComponent(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return toFloat(v)
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// gateGeo enforces the valid global coordinate range. Regional bounding is
// the validator's job.
func gateGeo(lat, lng float64) (any, bool) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, false
	}
	return model.GeoValue{Lat: lat, Lng: lng}, true
}

func coerceURL(raw any) (any, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, false
	}
	return s, true
}
