package panel

import (
	"strings"

	"crypto_dash/internal/domain"
)

// Bias is a directional reading.
type Bias int

const (
	BiasUnknown Bias = iota
	BiasBearish
	BiasNeutral
	BiasBullish
)

func (b Bias) String() string {
	switch b {
	case BiasBullish:
		return "bullish"
	case BiasBearish:
		return "bearish"
	case BiasNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// Sentiment average beyond which the news flow counts as directional.
const sentimentThreshold = 0.05

// NVT band: cheap network below nvtCheap, expensive above nvtExpensive.
const (
	nvtCheap     = 30
	nvtExpensive = 100
)

// ConsensusResult is the per-source bias and whether they agree.
type ConsensusResult struct {
	Sentiment Bias
	Onchain   Bias
	Signal    Bias
	// Aligned is true when no two known directional biases oppose each other.
	Aligned bool
}

// Overall is the shared direction when aligned, otherwise neutral.
func (r ConsensusResult) Overall() Bias {
	if !r.Aligned {
		return BiasNeutral
	}
	out := BiasUnknown
	for _, b := range []Bias{r.Sentiment, r.Onchain, r.Signal} {
		switch b {
		case BiasBullish, BiasBearish:
			return b
		case BiasNeutral:
			out = BiasNeutral
		}
	}
	return out
}

// Consensus reads each payload's bias. Absent payloads are BiasUnknown.
func Consensus(s *domain.Sentiment, o *domain.Onchain, sig *domain.Signal) ConsensusResult {
	r := ConsensusResult{
		Sentiment: sentimentBias(s),
		Onchain:   onchainBias(o),
		Signal:    signalBias(sig),
	}

	var bull, bear bool
	for _, b := range []Bias{r.Sentiment, r.Onchain, r.Signal} {
		bull = bull || b == BiasBullish
		bear = bear || b == BiasBearish
	}
	r.Aligned = !(bull && bear)
	return r
}

func sentimentBias(s *domain.Sentiment) Bias {
	if s == nil || !s.Average.Known {
		return BiasUnknown
	}
	switch {
	case s.Average.Value > sentimentThreshold:
		return BiasBullish
	case s.Average.Value < -sentimentThreshold:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

func onchainBias(o *domain.Onchain) Bias {
	if o == nil || !o.NVT.Known {
		return BiasUnknown
	}
	switch v := o.NVT.Value; {
	case v > 0 && v < nvtCheap:
		return BiasBullish
	case v > nvtExpensive:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

func signalBias(s *domain.Signal) Bias {
	if s == nil || s.Direction == "" {
		return BiasUnknown
	}
	d := strings.ToUpper(s.Direction)
	switch {
	case strings.Contains(d, "BULL"), strings.Contains(d, "BUY"):
		return BiasBullish
	case strings.Contains(d, "BEAR"), strings.Contains(d, "SELL"):
		return BiasBearish
	default:
		return BiasNeutral
	}
}
