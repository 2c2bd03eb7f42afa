package alerts

import (
	"stock_alerts_backend/models"
	"stock_alerts_backend/services/indicators"
)

// IndicatorView is the read side of the technical indicator tracker.
type IndicatorView interface {
	Value(symbol string, typ models.IndicatorType, period int) (float64, bool)
	Crossover(symbol string, fast, slow int) (indicators.Cross, bool)
}

// Evaluate decides whether tick satisfies alert. It is a pure function
// of its inputs: no I/O, no side effects. Insufficient indicator
// history never triggers and is not an error.
func Evaluate(alert *models.PriceAlert, tick models.Tick, view IndicatorView) bool {
	switch alert.AlertSubType {
	case models.SubTypeTechnical:
		return evaluateTechnical(alert, view)
	case models.SubTypePrice, models.SubTypeVolume, models.SubTypePercentage:
		if len(alert.Conditions) > 0 {
			return evaluateConditions(alert, tick)
		}
		return evaluateScalar(alert, tick)
	}
	return false
}

// evaluateScalar compares a single tick-derived value against the
// alert threshold: upper means >=, lower means <=.
func evaluateScalar(alert *models.PriceAlert, tick models.Tick) bool {
	var current, threshold float64
	switch alert.AlertSubType {
	case models.SubTypePrice:
		current, threshold = tick.Price, alert.Threshold
	case models.SubTypeVolume:
		current, threshold = tick.Volume, alert.Threshold
	case models.SubTypePercentage:
		if alert.PreviousDayClose == 0 {
			return false
		}
		current = percentChange(tick.Price, alert.PreviousDayClose)
		threshold = alert.PercentageThreshold
	default:
		return false
	}
	return directional(alert.AlertType, current, threshold)
}

// evaluateConditions combines per-condition comparisons with the
// alert's AND/OR logic. An empty condition list never triggers.
func evaluateConditions(alert *models.PriceAlert, tick models.Tick) bool {
	if len(alert.Conditions) == 0 {
		return false
	}
	logic := alert.Logic()
	for _, cond := range alert.Conditions {
		value, ok := conditionValue(cond.Type, alert, tick)
		passed := ok && compare(value, cond.Operator, cond.Value)
		if logic == models.LogicalOr && passed {
			return true
		}
		if logic == models.LogicalAnd && !passed {
			return false
		}
	}
	return logic == models.LogicalAnd
}

func conditionValue(typ models.ConditionType, alert *models.PriceAlert, tick models.Tick) (float64, bool) {
	switch typ {
	case models.ConditionPrice:
		return tick.Price, true
	case models.ConditionVolume:
		return tick.Volume, true
	case models.ConditionPercentage:
		if alert.PreviousDayClose == 0 {
			return 0, false
		}
		return percentChange(tick.Price, alert.PreviousDayClose), true
	}
	return 0, false
}

func evaluateTechnical(alert *models.PriceAlert, view IndicatorView) bool {
	cfg := alert.Technical
	if cfg == nil || view == nil {
		return false
	}

	if cfg.Type == models.IndicatorMA && cfg.Crossover != "" {
		cross, ok := view.Crossover(alert.Symbol, cfg.FastWindow(), cfg.SlowWindow())
		if !ok {
			return false
		}
		switch cfg.Crossover {
		case models.CrossoverGolden:
			return cross == indicators.CrossAbove
		case models.CrossoverDeath:
			return cross == indicators.CrossBelow
		}
		return false
	}

	value, ok := view.Value(alert.Symbol, cfg.Type, cfg.Period)
	if !ok {
		return false
	}
	return directional(alert.AlertType, value, cfg.Threshold)
}

func directional(typ models.AlertType, current, threshold float64) bool {
	if typ == models.AlertUpper {
		return current >= threshold
	}
	return current <= threshold
}

func compare(value float64, op models.ConditionOperator, target float64) bool {
	switch op {
	case models.OperatorGreaterThan:
		return value > target
	case models.OperatorLessThan:
		return value < target
	case models.OperatorGreaterThanEqual:
		return value >= target
	case models.OperatorLessThanEqual:
		return value <= target
	case models.OperatorEqual:
		return value == target
	}
	return false
}

func percentChange(price, baseline float64) float64 {
	return (price - baseline) / baseline * 100
}
