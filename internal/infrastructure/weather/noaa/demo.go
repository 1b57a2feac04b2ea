package noaa

import (
	"crypto/md5"
	"fmt"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

// demoWeather synthesizes plausible Hawaiian trade-wind conditions. The
// coordinate hash keeps the variation deterministic, so repeated demo runs
// for one location always agree.
func demoWeather(lat, lon float64) domain.WeatherData {
	const (
		baseTemp     = 78.0
		baseHumidity = 68.0
		baseWind     = 12.0
	)

	sum := md5.Sum([]byte(fmt.Sprintf("%.3f,%.3f", lat, lon)))
	variation := float64(sum[0]) / 255.0

	conditions := []string{"partly cloudy", "mostly sunny", "scattered clouds", "clear"}
	idx := int(variation * 4)
	if idx > 3 {
		idx = 3
	}

	return domain.WeatherData{
		TemperatureF:    baseTemp + variation*10 - 5,
		HumidityPercent: baseHumidity + variation*20 - 10,
		WindSpeedMph:    baseWind + variation*15,
		Conditions:      conditions[idx],
	}
}
