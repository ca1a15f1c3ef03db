package irrigation

import (
	"math"
	"time"
)

const (
	// TargetHumidity is the soil humidity (percent) irrigation aims for.
	TargetHumidity = 70.0
	// MaxLiters caps a single watering volume.
	MaxLiters = 50.0
	// LitersPerDeficitPoint is the water volume per percentage point of deficit.
	LitersPerDeficitPoint = 0.5

	secondsPerDeficitPoint = 3.0
	// MinDuration and MaxDuration bound the heuristic watering duration.
	MinDuration = 10 * time.Second
	MaxDuration = 300 * time.Second
)

// Sizing is the recommended volume and duration of a watering run.
type Sizing struct {
	Liters   float64
	Duration time.Duration
}

// Estimate sizes a watering run for the given humidity reading.
func Estimate(humidity float64) Sizing {
	return Sizing{
		Liters:   EstimateLiters(humidity),
		Duration: EstimateDuration(humidity),
	}
}

// EstimateLiters maps a humidity percentage to a water volume rounded to two decimals.
// The result is zero exactly when humidity is at or above TargetHumidity.
func EstimateLiters(humidity float64) float64 {
	liters := math.Min(MaxLiters, deficit(humidity)*LitersPerDeficitPoint)
	return math.Round(liters*100) / 100
}

// EstimateDuration maps a humidity percentage to a watering duration in [MinDuration, MaxDuration].
func EstimateDuration(humidity float64) time.Duration {
	seconds := deficit(humidity) * secondsPerDeficitPoint
	seconds = math.Max(MinDuration.Seconds(), math.Min(MaxDuration.Seconds(), seconds))
	return time.Duration(seconds * float64(time.Second))
}

// WateredHumidity is the humidity a parcel reaches after a completed run.
func WateredHumidity(current float64) float64 {
	return math.Max(ClampHumidity(current), TargetHumidity)
}

// ClampHumidity restricts a reading to [0, 100]; NaN is treated as 0.
func ClampHumidity(humidity float64) float64 {
	if math.IsNaN(humidity) {
		return 0
	}
	return math.Max(0, math.Min(100, humidity))
}

func deficit(humidity float64) float64 {
	return math.Max(0, TargetHumidity-ClampHumidity(humidity))
}
