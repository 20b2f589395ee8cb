package domain

import "time"

// IndicatorReading is one technical indicator's latest value and label.
type IndicatorReading struct {
	Value  Num
	Signal string
}

// SignalSummary counts indicator votes for one timeframe and records the bar they were read at.
type SignalSummary struct {
	Buy     int
	Sell    int
	Hold    int
	Overall string
	Date    string
	Close   Num
}

// TimeframeIndicators groups the indicators computed over one timeframe.
type TimeframeIndicators struct {
	From        string
	To          string
	Granularity string
	Indicators  map[string]IndicatorReading
	Summary     SignalSummary
}

// Names returns indicator names in a stable order.
func (t TimeframeIndicators) Names() []string {
	return sortedKeys(t.Indicators)
}

// Indicators is the technical-analysis payload.
type Indicators struct {
	Timeframes map[string]TimeframeIndicators
}

// Forecast point types.
type (
	ForecastTestPoint struct {
		Date      string
		Actual    Num
		Predicted Num
	}
	ForecastDayPoint struct {
		DayOffset int
		Date      string
		Predicted Num
	}
)

// ForecastMetrics are the model's hold-out errors.
type ForecastMetrics struct {
	RMSE Num
	MAPE Num
	R2   Num
}

// Forecast is the neural price forecast payload.
type Forecast struct {
	Lookback          int
	TrainRatio        Num
	NextDayPrediction Num
	Metrics           ForecastMetrics
	TestPredictions   []ForecastTestPoint
	OneWeekForecast   []ForecastDayPoint
}

// SentimentItem is one scored headline or post.
type SentimentItem struct {
	Title       string
	URL         string
	Source      string
	Sentiment   Num
	Label       string
	PublishedAt time.Time // zero when the backend sent no parsable time
}

// Sentiment is the news/social sentiment payload.
type Sentiment struct {
	Average  Num
	Label    string
	Counts   map[string]int // by label: positive, negative, neutral
	BySource map[string]int
	Items    []SentimentItem
}

// Sources returns source names in a stable order.
func (s Sentiment) Sources() []string {
	return sortedKeys(s.BySource)
}

// Onchain is the on-chain metrics payload. Metrics the backend did not report are Unknown.
type Onchain struct {
	TVLChainUSD     Num
	TVLProtocolUSD  Num
	TxCount         Num
	ActiveAddresses Num
	NVT             Num
	Hashrate        Num
	Note            string
}

// TVL prefers chain TVL and falls back to protocol TVL.
func (o Onchain) TVL() Num {
	if o.TVLChainUSD.Known {
		return o.TVLChainUSD
	}
	return o.TVLProtocolUSD
}

// Signal is the composite trading signal payload.
type Signal struct {
	Direction   string
	Score       Num
	Confidence  Num
	Inputs      map[string]Num
	Explanation []string
}

// InputNames returns the signal's input names in a stable order.
func (s Signal) InputNames() []string {
	return sortedKeys(s.Inputs)
}
