package strategy

import (
	"context"
	"fmt"
	"math"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
	"forexTradeBot/internal/strategy/indicators"
)

// Indicator weights for the weighted combine rule. The weighted score must
// exceed the heaviest single weight, so at least two indicators have to
// agree before a signal fires.
const (
	weightTrend = 1.0
	weightEMA   = 0.5
	weightRSI   = 1.0
)

// Advanced evaluates one pair against several indicators and combines their
// votes by the configured rule (majority vote or weighted sum). It keeps no
// state between evaluations.
type Advanced struct {
	params Params
	logger ports.Logger

	smaShort *indicators.MovingAverage
	smaLong  *indicators.MovingAverage
	ema      *indicators.MovingAverage
	rsi      *indicators.RSI
}

// NewAdvanced creates a multi-indicator strategy.
func NewAdvanced(params Params, logger ports.Logger) (*Advanced, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for advanced strategy")
	}
	if params.Pair.IsZero() {
		return nil, fmt.Errorf("advanced strategy requires a currency pair")
	}
	if params.ShortMAPeriod <= 0 || params.LongMAPeriod <= 0 || params.EMAPeriod <= 0 || params.RSIPeriod <= 0 {
		return nil, fmt.Errorf("advanced strategy indicator periods must be positive")
	}
	if params.ShortMAPeriod >= params.LongMAPeriod {
		return nil, fmt.Errorf("short MA period must be less than long MA period")
	}
	if params.CombineRule != "majority" && params.CombineRule != "weighted" {
		return nil, fmt.Errorf("combine rule must be majority or weighted, got %q", params.CombineRule)
	}

	return &Advanced{
		params: params,
		logger: logger,
		smaShort: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: params.ShortMAPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
		smaLong: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: params.LongMAPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
		ema: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: params.EMAPeriod},
			Type:            indicators.ExponentialMovingAverage,
		}),
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: params.RSIPeriod},
			Overbought:      params.RSIOverbought,
			Oversold:        params.RSIOversold,
		}),
	}, nil
}

// Name identifies the strategy in signals and logs.
func (a *Advanced) Name() string { return "advanced" }

// RequiredDataPoints returns the minimum number of points needed per pair.
func (a *Advanced) RequiredDataPoints() int {
	required := a.params.LongMAPeriod
	if a.params.EMAPeriod > required {
		required = a.params.EMAPeriod
	}
	if a.rsi.RequiredDataPoints() > required {
		required = a.rsi.RequiredDataPoints()
	}
	return required
}

// Evaluate computes every indicator vote and combines them.
//
// Votes: the MA trend vote is +1 when price sits above a rising short MA,
// -1 in the mirrored case; the EMA vote follows the price's side of the EMA;
// the RSI vote confirms direction only while not stretched into an extreme
// (above 50 but below overbought is bullish, below 50 but above oversold is
// bearish, extremes abstain).
func (a *Advanced) Evaluate(ctx context.Context, ec ports.EvalContext) (domain.Signal, error) {
	points := ec.Last(a.params.Pair, a.RequiredDataPoints())
	if len(points) < a.RequiredDataPoints() {
		a.logger.Debug(ctx, "Not enough data for advanced strategy", map[string]interface{}{
			"pair":      a.params.Pair.String(),
			"available": len(points),
			"required":  a.RequiredDataPoints(),
		})
		return domain.Hold(a.Name(), a.params.Pair, ec.Now(), "not enough data"), nil
	}
	price := points[len(points)-1].Mid()

	smaShort, err := a.smaShort.Calculate(ctx, points)
	if err != nil {
		return domain.Hold(a.Name(), a.params.Pair, ec.Now(), "short MA unavailable"), nil
	}
	smaLong, err := a.smaLong.Calculate(ctx, points)
	if err != nil {
		return domain.Hold(a.Name(), a.params.Pair, ec.Now(), "long MA unavailable"), nil
	}
	ema, err := a.ema.Calculate(ctx, points)
	if err != nil {
		return domain.Hold(a.Name(), a.params.Pair, ec.Now(), "EMA unavailable"), nil
	}
	rsi, err := a.rsi.Calculate(ctx, points)
	if err != nil {
		return domain.Hold(a.Name(), a.params.Pair, ec.Now(), "RSI unavailable"), nil
	}

	trendVote := 0
	switch {
	case price > smaShort && smaShort > smaLong:
		trendVote = 1
	case price < smaShort && smaShort < smaLong:
		trendVote = -1
	}

	emaVote := 0
	switch {
	case price > ema:
		emaVote = 1
	case price < ema:
		emaVote = -1
	}

	rsiVote := 0
	switch {
	case rsi > 50 && !a.rsi.IsOverbought(rsi):
		rsiVote = 1
	case rsi < 50 && !a.rsi.IsOversold(rsi):
		rsiVote = -1
	}

	a.logger.Debug(ctx, "Indicator votes computed", map[string]interface{}{
		"pair":     a.params.Pair.String(),
		"price":    price,
		"smaShort": smaShort,
		"smaLong":  smaLong,
		"ema":      ema,
		"rsi":      rsi,
		"trend":    trendVote,
		"emaVote":  emaVote,
		"rsiVote":  rsiVote,
	})

	var direction domain.SignalDirection
	var strength float64
	if a.params.CombineRule == "weighted" {
		score := weightTrend*float64(trendVote) + weightEMA*float64(emaVote) + weightRSI*float64(rsiVote)
		total := weightTrend + weightEMA + weightRSI
		switch {
		case score > weightTrend:
			direction = domain.SignalBuy
		case score < -weightTrend:
			direction = domain.SignalSell
		default:
			direction = domain.SignalHold
		}
		strength = math.Abs(score) / total
	} else {
		var buyN, sellN int
		for _, v := range []int{trendVote, emaVote, rsiVote} {
			switch {
			case v > 0:
				buyN++
			case v < 0:
				sellN++
			}
		}
		switch {
		case buyN > sellN:
			direction = domain.SignalBuy
		case sellN > buyN:
			direction = domain.SignalSell
		default:
			direction = domain.SignalHold
		}
		strength = math.Abs(float64(buyN-sellN)) / 3
	}

	if direction == domain.SignalHold {
		return domain.Hold(a.Name(), a.params.Pair, ec.Now(), "indicators disagree"), nil
	}
	return domain.Signal{
		Pairs:     []domain.CurrencyPair{a.params.Pair},
		Direction: direction,
		Strength:  strength,
		Timestamp: ec.Now(),
		Strategy:  a.Name(),
		Reason: fmt.Sprintf("%s %s by %s rule (trend=%d ema=%d rsi=%d)",
			a.params.Pair, direction, a.params.CombineRule, trendVote, emaVote, rsiVote),
	}, nil
}
