package swing

import "github.com/bdougie/swingvision/internal/models"

// Fixed heuristics. None of these are derived from landmarks and they have
// not been validated against measured swings; they are reported as-is so the
// result shape stays complete.
const (
	// PlaneConsistency is reported for every swing
	PlaneConsistency = 85.0

	// Lead-side weight percentages at address, impact and finish
	WeightAddress = 50.0
	WeightImpact  = 80.0
	WeightFinish  = 90.0
)

// PlaceholderWeightTransfer returns the fixed weight transfer values
func PlaceholderWeightTransfer() models.WeightTransfer {
	return models.WeightTransfer{
		Address: WeightAddress,
		Impact:  WeightImpact,
		Finish:  WeightFinish,
		Rating:  models.StatusGood,
	}
}
