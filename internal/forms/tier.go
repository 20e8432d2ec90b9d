package forms

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier is the risk classification printed on the assessment
type Tier string

const (
	TierMinimal       Tier = "MINIMAL"
	TierOrdinary      Tier = "ORDINARY"
	TierExtraordinary Tier = "EXTRAORDINARY"
	TierExtreme       Tier = "EXTREME"
)

// ErrScoreOutOfRange is returned for totals outside [0, 100]
var ErrScoreOutOfRange = errors.New("score out of range")

var (
	thresholdOrdinary      = decimal.NewFromInt(15)
	thresholdExtraordinary = decimal.NewFromInt(50)
	thresholdExtreme       = decimal.NewFromInt(90)
	maxScore               = decimal.NewFromInt(100)
)

// TierFor classifies a total score:
//
//	< 15      MINIMAL
//	[15, 50)  ORDINARY
//	[50, 90)  EXTRAORDINARY
//	[90, 100] EXTREME
func TierFor(total decimal.Decimal) (Tier, error) {
	switch {
	case total.IsNegative() || total.GreaterThan(maxScore):
		return "", fmt.Errorf("%w: %s", ErrScoreOutOfRange, total.String())
	case total.LessThan(thresholdOrdinary):
		return TierMinimal, nil
	case total.LessThan(thresholdExtraordinary):
		return TierOrdinary, nil
	case total.LessThan(thresholdExtreme):
		return TierExtraordinary, nil
	default:
		return TierExtreme, nil
	}
}

// Label returns the institutional wording for the tier
func (t Tier) Label() string {
	switch t {
	case TierMinimal:
		return "Mínimo / No aplica"
	case TierOrdinary:
		return "Ordinario"
	case TierExtraordinary:
		return "Extraordinario"
	case TierExtreme:
		return "Extremo"
	}
	return string(t)
}

// ScoreFromSubtotals sums the three section subtotals and classifies the result
func ScoreFromSubtotals(threat, specificRisk, vulnerability decimal.Decimal) (decimal.Decimal, Tier, error) {
	total := threat.Add(specificRisk).Add(vulnerability)
	tier, err := TierFor(total)
	return total, tier, err
}
