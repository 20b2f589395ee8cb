package panel

import (
	"math/rand/v2"

	"crypto_dash/internal/domain"
)

const sparkBase = 100.0

// Sparkline synthesizes n points from 100 to 100*(1+change/100). Interior points carry
// uniform noise of up to jitter percent of the baseline; the endpoints are exact.
// An unknown change draws a flat line. A nil rng disables the noise.
func Sparkline(change domain.Num, n int, jitter float64, rng *rand.Rand) []float64 {
	if n <= 0 {
		return nil
	}
	end := sparkBase
	if change.Known {
		end = sparkBase * (1 + change.Value/100)
	}
	if n == 1 {
		return []float64{end}
	}

	out := make([]float64, n)
	step := (end - sparkBase) / float64(n-1)
	amp := jitter / 100 * sparkBase
	for i := range out {
		out[i] = sparkBase + step*float64(i)
		if i == 0 || i == n-1 || rng == nil || amp <= 0 || !change.Known {
			continue
		}
		out[i] += (rng.Float64()*2 - 1) * amp
	}
	out[n-1] = end
	return out
}
