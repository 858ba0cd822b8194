package format

import (
	"math"
	"time"
)

func mathFloat64bits(f float64) uint64    { return math.Float64bits(f) }
func mathFloat64frombits(b uint64) float64 { return math.Float64frombits(b) }

func timeFromUnix(sec, nsec int64) time.Time {
	return time.Unix(sec, nsec).UTC()
}
