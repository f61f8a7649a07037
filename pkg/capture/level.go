package capture

import "math"

// Level range in dBFS mapped onto [0, 1].
const (
	MinDB   = -60.0
	MaxDB   = 0.0
	FloorDB = -160.0
)

// DBFS returns the RMS level of samples in decibels relative to full
// scale. Silence and empty input report FloorDB.
func DBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return FloorDB
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return FloorDB
	}
	return max(20*math.Log10(rms), FloorDB)
}

// Normalize maps db linearly from [MinDB, MaxDB] to [0, 1], clamping
// values outside the range.
func Normalize(db float64) float32 {
	if math.IsNaN(db) {
		return 0
	}
	v := (db - MinDB) / (MaxDB - MinDB)
	return float32(min(max(v, 0), 1))
}
