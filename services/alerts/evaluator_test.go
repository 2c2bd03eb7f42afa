package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stock_alerts_backend/models"
	"stock_alerts_backend/services/indicators"
)

type fakeIndicators struct {
	value   float64
	valueOK bool
	cross   indicators.Cross
	crossOK bool
}

func (f *fakeIndicators) Value(string, models.IndicatorType, int) (float64, bool) {
	return f.value, f.valueOK
}

func (f *fakeIndicators) Crossover(string, int, int) (indicators.Cross, bool) {
	return f.cross, f.crossOK
}

func tick(symbol string, price, volume float64) models.Tick {
	return models.Tick{Symbol: symbol, Price: price, Volume: volume}
}

func TestEvaluatePriceThresholds(t *testing.T) {
	cases := []struct {
		name      string
		alertType models.AlertType
		threshold float64
		price     float64
		want      bool
	}{
		{"upper crossed", models.AlertUpper, 150, 151, true},
		{"upper exact", models.AlertUpper, 150, 150, true},
		{"upper below", models.AlertUpper, 150, 149.99, false},
		{"lower crossed", models.AlertLower, 100, 99, true},
		{"lower exact", models.AlertLower, 100, 100, true},
		{"lower above", models.AlertLower, 100, 100.01, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alert := &models.PriceAlert{
				Symbol:       "AAPL",
				AlertType:    tc.alertType,
				AlertSubType: models.SubTypePrice,
				Threshold:    tc.threshold,
			}
			got := Evaluate(alert, tick("AAPL", tc.price, 0), nil)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateVolume(t *testing.T) {
	alert := &models.PriceAlert{
		Symbol:       "TSLA",
		AlertType:    models.AlertUpper,
		AlertSubType: models.SubTypeVolume,
		Threshold:    1_000_000,
	}
	assert.True(t, Evaluate(alert, tick("TSLA", 200, 1_500_000), nil))
	assert.False(t, Evaluate(alert, tick("TSLA", 200, 999_999), nil))
}

func TestEvaluatePercentage(t *testing.T) {
	// 5% move off a 200 baseline triggers at 210 and above.
	alert := &models.PriceAlert{
		Symbol:              "TSLA",
		AlertType:           models.AlertUpper,
		AlertSubType:        models.SubTypePercentage,
		PercentageThreshold: 5,
		PreviousDayClose:    200,
	}
	assert.True(t, Evaluate(alert, tick("TSLA", 211, 0), nil))
	assert.True(t, Evaluate(alert, tick("TSLA", 210, 0), nil))
	assert.False(t, Evaluate(alert, tick("TSLA", 209, 0), nil))

	t.Run("missing baseline never triggers", func(t *testing.T) {
		broken := *alert
		broken.PreviousDayClose = 0
		assert.False(t, Evaluate(&broken, tick("TSLA", 500, 0), nil))
	})

	t.Run("lower direction", func(t *testing.T) {
		down := *alert
		down.AlertType = models.AlertLower
		down.PercentageThreshold = -5
		assert.True(t, Evaluate(&down, tick("TSLA", 190, 0), nil))
		assert.False(t, Evaluate(&down, tick("TSLA", 195, 0), nil))
	})
}

func TestEvaluateConditions(t *testing.T) {
	price := models.Condition{Type: models.ConditionPrice, Operator: models.OperatorGreaterThan, Value: 100}
	volume := models.Condition{Type: models.ConditionVolume, Operator: models.OperatorGreaterThanEqual, Value: 500}

	t.Run("AND requires all", func(t *testing.T) {
		alert := &models.PriceAlert{
			Symbol:         "AAPL",
			AlertType:      models.AlertUpper,
			AlertSubType:   models.SubTypePrice,
			Conditions:     []models.Condition{price, volume},
			ConditionLogic: models.LogicalAnd,
		}
		assert.True(t, Evaluate(alert, tick("AAPL", 101, 500), nil))
		assert.False(t, Evaluate(alert, tick("AAPL", 101, 499), nil))
		assert.False(t, Evaluate(alert, tick("AAPL", 100, 500), nil))
	})

	t.Run("OR requires any", func(t *testing.T) {
		alert := &models.PriceAlert{
			Symbol:         "AAPL",
			AlertType:      models.AlertUpper,
			AlertSubType:   models.SubTypePrice,
			Conditions:     []models.Condition{price, volume},
			ConditionLogic: models.LogicalOr,
		}
		assert.True(t, Evaluate(alert, tick("AAPL", 101, 0), nil))
		assert.True(t, Evaluate(alert, tick("AAPL", 50, 500), nil))
		assert.False(t, Evaluate(alert, tick("AAPL", 50, 0), nil))
	})

	t.Run("logic defaults to AND", func(t *testing.T) {
		alert := &models.PriceAlert{
			Symbol:       "AAPL",
			AlertType:    models.AlertUpper,
			AlertSubType: models.SubTypePrice,
			Conditions:   []models.Condition{price, volume},
		}
		assert.False(t, Evaluate(alert, tick("AAPL", 101, 0), nil))
	})

	t.Run("equality operator", func(t *testing.T) {
		alert := &models.PriceAlert{
			Symbol:       "AAPL",
			AlertType:    models.AlertUpper,
			AlertSubType: models.SubTypePrice,
			Conditions: []models.Condition{
				{Type: models.ConditionPrice, Operator: models.OperatorEqual, Value: 42},
			},
		}
		assert.True(t, Evaluate(alert, tick("AAPL", 42, 0), nil))
		assert.False(t, Evaluate(alert, tick("AAPL", 42.01, 0), nil))
	})
}

func TestEvaluateTechnical(t *testing.T) {
	t.Run("scalar indicator", func(t *testing.T) {
		alert := &models.PriceAlert{
			Symbol:       "MSFT",
			AlertType:    models.AlertUpper,
			AlertSubType: models.SubTypeTechnical,
			Technical: &models.TechnicalIndicatorConfig{
				Type:      models.IndicatorRSI,
				Period:    14,
				Threshold: 70,
			},
		}
		assert.True(t, Evaluate(alert, tick("MSFT", 0, 0), &fakeIndicators{value: 71, valueOK: true}))
		assert.False(t, Evaluate(alert, tick("MSFT", 0, 0), &fakeIndicators{value: 69, valueOK: true}))
	})

	t.Run("insufficient history never triggers", func(t *testing.T) {
		alert := &models.PriceAlert{
			Symbol:       "MSFT",
			AlertType:    models.AlertUpper,
			AlertSubType: models.SubTypeTechnical,
			Technical: &models.TechnicalIndicatorConfig{
				Type:      models.IndicatorRSI,
				Period:    14,
				Threshold: 70,
			},
		}
		assert.False(t, Evaluate(alert, tick("MSFT", 0, 0), &fakeIndicators{value: 99, valueOK: false}))
	})

	t.Run("golden crossover", func(t *testing.T) {
		alert := &models.PriceAlert{
			Symbol:       "MSFT",
			AlertType:    models.AlertUpper,
			AlertSubType: models.SubTypeTechnical,
			Technical: &models.TechnicalIndicatorConfig{
				Type:      models.IndicatorMA,
				Crossover: models.CrossoverGolden,
			},
		}
		assert.True(t, Evaluate(alert, tick("MSFT", 0, 0), &fakeIndicators{cross: indicators.CrossAbove, crossOK: true}))
		assert.False(t, Evaluate(alert, tick("MSFT", 0, 0), &fakeIndicators{cross: indicators.CrossBelow, crossOK: true}))
		assert.False(t, Evaluate(alert, tick("MSFT", 0, 0), &fakeIndicators{cross: indicators.CrossNone, crossOK: true}))
		assert.False(t, Evaluate(alert, tick("MSFT", 0, 0), &fakeIndicators{crossOK: false}))
	})

	t.Run("missing config never triggers", func(t *testing.T) {
		alert := &models.PriceAlert{
			Symbol:       "MSFT",
			AlertType:    models.AlertUpper,
			AlertSubType: models.SubTypeTechnical,
		}
		assert.False(t, Evaluate(alert, tick("MSFT", 0, 0), &fakeIndicators{value: 99, valueOK: true}))
	})
}
