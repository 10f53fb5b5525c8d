package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Weather is the current conditions reported for a city. Temperatures are in
// Celsius, wind speed in m/s, pressure in hPa and visibility in km.
type Weather struct {
	City        string
	Country     string
	Temperature float64
	FeelsLike   float64
	Description string
	Humidity    int
	WindSpeed   float64
	Pressure    int
	Visibility  float64
}

// WeatherService looks up current weather. Implementations call an external
// API; none is bundled.
type WeatherService interface {
	Current(ctx context.Context, city string) (*Weather, error)
}

// FormatWeather renders w as a short multi-line report.
func FormatWeather(w *Weather) string {
	if w == nil {
		return "Weather information is currently unavailable."
	}
	place := w.City
	if w.Country != "" {
		place += ", " + w.Country
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Weather in %s:\n", place)
	fmt.Fprintf(&b, "- Temperature: %.1f°C (feels like %.1f°C)\n", w.Temperature, w.FeelsLike)
	fmt.Fprintf(&b, "- Condition: %s\n", titleCase(w.Description))
	fmt.Fprintf(&b, "- Humidity: %d%%\n", w.Humidity)
	fmt.Fprintf(&b, "- Wind Speed: %.1f m/s\n", w.WindSpeed)
	fmt.Fprintf(&b, "- Pressure: %d hPa", w.Pressure)
	if w.Visibility > 0 {
		fmt.Fprintf(&b, "\n- Visibility: %.1f km", w.Visibility)
	}
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
