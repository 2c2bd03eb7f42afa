package models

import (
	"fmt"
	"strings"
	"time"
)

// AlertType is the direction of an alert.
type AlertType string

const (
	AlertUpper AlertType = "upper"
	AlertLower AlertType = "lower"
)

// AlertSubType selects the threshold form of an alert.
type AlertSubType string

const (
	SubTypePrice      AlertSubType = "price"
	SubTypePercentage AlertSubType = "percentage"
	SubTypeVolume     AlertSubType = "volume"
	SubTypeTechnical  AlertSubType = "technical"
)

// ConditionOperator represents comparison operators for conditions
type ConditionOperator string

const (
	OperatorGreaterThan      ConditionOperator = ">"
	OperatorLessThan         ConditionOperator = "<"
	OperatorGreaterThanEqual ConditionOperator = ">="
	OperatorLessThanEqual    ConditionOperator = "<="
	OperatorEqual            ConditionOperator = "=="
)

// ConditionType is the tick-derived value a condition compares against.
type ConditionType string

const (
	ConditionPrice      ConditionType = "price"
	ConditionVolume     ConditionType = "volume"
	ConditionPercentage ConditionType = "percentage"
)

// LogicalOperator for combining conditions
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// IndicatorType represents the type of technical indicator
type IndicatorType string

const (
	IndicatorRSI  IndicatorType = "RSI"
	IndicatorMA   IndicatorType = "MA"
	IndicatorMACD IndicatorType = "MACD"
)

// CrossoverType selects dual moving-average crossover semantics.
type CrossoverType string

const (
	CrossoverGolden CrossoverType = "golden"
	CrossoverDeath  CrossoverType = "death"
)

// Condition is a single comparison against a tick-derived value.
type Condition struct {
	Type     ConditionType     `bson:"type" json:"type"`
	Operator ConditionOperator `bson:"operator" json:"operator"`
	Value    float64           `bson:"value" json:"value"`
}

// TechnicalIndicatorConfig configures a technical-subtype alert.
// Period is the window size (the fast window for crossovers);
// SlowPeriod is the slow crossover window and defaults to 200.
type TechnicalIndicatorConfig struct {
	Type       IndicatorType `bson:"type" json:"type"`
	Period     int           `bson:"period,omitempty" json:"period,omitempty"`
	SlowPeriod int           `bson:"slow_period,omitempty" json:"slow_period,omitempty"`
	Threshold  float64       `bson:"threshold,omitempty" json:"threshold,omitempty"`
	Crossover  CrossoverType `bson:"crossover,omitempty" json:"crossover,omitempty"`
}

// Default crossover windows when an MA alert sets Crossover without periods.
const (
	DefaultFastWindow = 50
	DefaultSlowWindow = 200
)

// FastWindow returns the fast crossover window.
func (c TechnicalIndicatorConfig) FastWindow() int {
	if c.Period > 0 {
		return c.Period
	}
	return DefaultFastWindow
}

// SlowWindow returns the slow crossover window.
func (c TechnicalIndicatorConfig) SlowWindow() int {
	if c.SlowPeriod > 0 {
		return c.SlowPeriod
	}
	return DefaultSlowWindow
}

// PriceAlert is one rule owned by one user for one symbol.
// A triggered alert is deactivated in the same atomic update that
// records TriggeredAt, so no tick can trigger it twice before a re-arm.
type PriceAlert struct {
	ID                  string                    `bson:"_id,omitempty" json:"id"`
	UserID              string                    `bson:"user_id" json:"user_id"`
	Symbol              string                    `bson:"symbol" json:"symbol"`
	AlertName           string                    `bson:"alert_name" json:"alert_name"`
	AlertType           AlertType                 `bson:"alert_type" json:"alert_type"`
	AlertSubType        AlertSubType              `bson:"alert_sub_type" json:"alert_sub_type"`
	Threshold           float64                   `bson:"threshold,omitempty" json:"threshold,omitempty"`
	PercentageThreshold float64                   `bson:"percentage_threshold,omitempty" json:"percentage_threshold,omitempty"`
	PreviousDayClose    float64                   `bson:"previous_day_close,omitempty" json:"previous_day_close,omitempty"`
	Conditions          []Condition               `bson:"conditions,omitempty" json:"conditions,omitempty"`
	ConditionLogic      LogicalOperator           `bson:"condition_logic,omitempty" json:"condition_logic,omitempty"`
	Technical           *TechnicalIndicatorConfig `bson:"technical,omitempty" json:"technical,omitempty"`
	IsActive            bool                      `bson:"is_active" json:"is_active"`
	TriggeredAt         *time.Time                `bson:"triggered_at,omitempty" json:"triggered_at,omitempty"`
	CreatedAt           time.Time                 `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time                 `bson:"updated_at" json:"updated_at"`
}

// Logic returns the condition combinator, defaulting to AND.
func (a *PriceAlert) Logic() LogicalOperator {
	if a.ConditionLogic == LogicalOr {
		return LogicalOr
	}
	return LogicalAnd
}

// Normalize upper-cases the symbol and trims identity fields.
func (a *PriceAlert) Normalize() {
	a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
	a.AlertName = strings.TrimSpace(a.AlertName)
}

// Validate rejects malformed rules so they never enter the evaluation loop.
func (a *PriceAlert) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if a.AlertName == "" {
		return fmt.Errorf("alert_name is required")
	}
	if a.AlertType != AlertUpper && a.AlertType != AlertLower {
		return fmt.Errorf("invalid alert_type %q", a.AlertType)
	}

	switch a.AlertSubType {
	case SubTypePrice, SubTypeVolume:
		if len(a.Conditions) == 0 && a.Threshold <= 0 {
			return fmt.Errorf("%s alert requires a threshold or conditions", a.AlertSubType)
		}
	case SubTypePercentage:
		// The threshold sign must match the direction: an upper alert
		// watches for a positive move, a lower alert for a negative one.
		if a.AlertType == AlertUpper && a.PercentageThreshold <= 0 {
			return fmt.Errorf("upper percentage alert requires a positive percentage_threshold")
		}
		if a.AlertType == AlertLower && a.PercentageThreshold >= 0 {
			return fmt.Errorf("lower percentage alert requires a negative percentage_threshold")
		}
		if a.PreviousDayClose <= 0 {
			return fmt.Errorf("percentage alert requires previous_day_close baseline")
		}
	case SubTypeTechnical:
		if a.Technical == nil {
			return fmt.Errorf("technical alert requires indicator config")
		}
		if err := a.Technical.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid alert_sub_type %q", a.AlertSubType)
	}

	for _, c := range a.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if a.ConditionLogic != "" && a.ConditionLogic != LogicalAnd && a.ConditionLogic != LogicalOr {
		return fmt.Errorf("invalid condition_logic %q", a.ConditionLogic)
	}
	return nil
}

// Validate checks the operator whitelist and condition type.
func (c Condition) Validate() error {
	switch c.Operator {
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterThanEqual,
		OperatorLessThanEqual, OperatorEqual:
	default:
		return fmt.Errorf("invalid condition operator %q", c.Operator)
	}
	switch c.Type {
	case ConditionPrice, ConditionVolume, ConditionPercentage:
	default:
		return fmt.Errorf("invalid condition type %q", c.Type)
	}
	return nil
}

// Validate checks the subtype-dependent required fields.
func (c *TechnicalIndicatorConfig) Validate() error {
	switch c.Type {
	case IndicatorRSI:
		if c.Period <= 0 {
			return fmt.Errorf("RSI indicator requires period")
		}
		if c.Threshold <= 0 {
			return fmt.Errorf("RSI indicator requires threshold")
		}
	case IndicatorMA:
		if c.Crossover != "" {
			if c.Crossover != CrossoverGolden && c.Crossover != CrossoverDeath {
				return fmt.Errorf("invalid crossover %q", c.Crossover)
			}
			if c.FastWindow() >= c.SlowWindow() {
				return fmt.Errorf("crossover fast window must be shorter than slow window")
			}
		} else {
			if c.Period <= 0 {
				return fmt.Errorf("MA indicator requires period")
			}
			if c.Threshold <= 0 {
				return fmt.Errorf("MA indicator requires threshold")
			}
		}
	case IndicatorMACD:
		// threshold defaults to zero line
	default:
		return fmt.Errorf("invalid indicator type %q", c.Type)
	}
	return nil
}
