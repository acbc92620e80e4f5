package grain

import (
	"math"
)

// MaxChannels is the largest number of spatial output channels a pool can
// drive.
const MaxChannels = 16

// spatialGains computes the static per-channel gains of a grain. One
// channel gets everything; two channels use an equal power pan over
// azimuth [-pi/2, pi/2]; more channels are treated as a ring of speakers
// starting straight ahead, each with a cosine lobe, blended towards an even
// spread as the elevation approaches the zenith. The gains have unit power.
func spatialGains(channels int, azimuth, elevation float64) (g [MaxChannels]float32) {
	switch {
	case channels <= 1:
		g[0] = 1
	case channels == 2:
		pan := (min(max(azimuth/(math.Pi/2), -1), 1) + 1) / 2
		g[0] = float32(math.Cos(pan * math.Pi / 2))
		g[1] = float32(math.Sin(pan * math.Pi / 2))
	default:
		channels = min(channels, MaxChannels)
		omni := math.Abs(math.Sin(elevation))
		var power float64
		var raw [MaxChannels]float64
		for c := range channels {
			speaker := 2 * math.Pi * float64(c) / float64(channels)
			lobe := 0.5 + 0.5*math.Cos(azimuth-speaker)
			raw[c] = (1-omni)*lobe*lobe + omni
			power += raw[c] * raw[c]
		}
		norm := 1 / math.Sqrt(power)
		for c := range channels {
			g[c] = float32(raw[c] * norm)
		}
	}
	return g
}
