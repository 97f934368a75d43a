package affiliate

import "github.com/toolforge/toolforge/pkg/toolforge/models"

// defaultCommissionRates holds the static per-program commission defaults,
// applied when a link carries no rate override.
var defaultCommissionRates = map[models.Program]float64{
	models.ProgramAmazon:       0.03,
	models.ProgramShareASale:   0.10,
	models.ProgramImpact:       0.12,
	models.ProgramCJ:           0.08,
	models.ProgramRakuten:      0.07,
	models.ProgramAwin:         0.08,
	models.ProgramPartnerStack: 0.20,
	models.ProgramRewardful:    0.25,
	models.ProgramDirect:       0.30,
	models.ProgramCustom:       0.15,
}

// trackingParams maps each program to the URL query parameter that carries
// our tracking ID. Programs absent from the map get only UTM parameters.
var trackingParams = map[models.Program]string{
	models.ProgramAmazon:       "tag",
	models.ProgramShareASale:   "afftrack",
	models.ProgramImpact:       "subId1",
	models.ProgramCJ:           "sid",
	models.ProgramRakuten:      "u1",
	models.ProgramAwin:         "clickref",
	models.ProgramPartnerStack: "sid",
	models.ProgramRewardful:    "via",
}

// EffectiveRate returns the link's commission rate override when present,
// otherwise the program default.
func EffectiveRate(link models.AffiliateLink) float64 {
	if link.CommissionRate != nil {
		return *link.CommissionRate
	}
	return defaultCommissionRates[link.Program]
}
