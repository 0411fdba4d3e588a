// Package negotiation is the compensation negotiation rules engine: offer
// evaluation against goals, percentile and market position analytics,
// progression metrics, recommendations, scenario scripts and talking points.
//
// Every function in this package is pure. Callers pass the offers, goals,
// benchmark data and clock they want evaluated; nothing here touches the
// database or the network, and nothing panics on malformed input.
package negotiation

// FinalOfferPolicy selects the verdict for a Final offer below the minimum.
type FinalOfferPolicy string

const (
	// FinalCounter still recommends a counter on a Final offer.
	FinalCounter FinalOfferPolicy = "counter"
	// FinalDecline treats a Final offer as closed and recommends declining.
	FinalDecline FinalOfferPolicy = "decline"
)

// Settings holds the tunable thresholds of the engine. Percentages are
// expressed in percent units (5 means 5%).
type Settings struct {
	// MarketBandPct is the half-width of the "At Market" band.
	MarketBandPct float64
	// TrendThresholdPct is the difference in mean increase, in percentage
	// points, between later and earlier halves that counts as a trend.
	TrendThresholdPct float64
	// MinTrendSample is the number of negotiated offers a trend needs.
	MinTrendSample int
	// MinIncrement is the smallest amount a counter suggestion asks for.
	MinIncrement float64
	// FinalOfferPolicy decides Counter vs Decline for a Final offer below minimum.
	FinalOfferPolicy FinalOfferPolicy
	// HighGapPct is the below-market gap that makes a recommendation High priority.
	HighGapPct float64
	// PTOIncrementDays and RemoteIncrementDays size secondary-term suggestions.
	PTOIncrementDays    int
	RemoteIncrementDays int
	// DefaultNegotiationGainPct is used when a user has no negotiated history.
	DefaultNegotiationGainPct float64
	// SkillPremiumPct is the projected uplift of a skill-development plan.
	SkillPremiumPct float64

	// Career velocity weights; they should sum to 1.
	VelocityFrequencyWeight float64
	VelocityMilestoneWeight float64
	VelocityGrowthWeight    float64
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		MarketBandPct:             5,
		TrendThresholdPct:         2,
		MinTrendSample:            4,
		MinIncrement:              2000,
		FinalOfferPolicy:          FinalCounter,
		HighGapPct:                10,
		PTOIncrementDays:          5,
		RemoteIncrementDays:       2,
		DefaultNegotiationGainPct: 5,
		SkillPremiumPct:           5,
		VelocityFrequencyWeight:   0.3,
		VelocityMilestoneWeight:   0.3,
		VelocityGrowthWeight:      0.4,
	}
}

// withDefaults fills zero-valued fields from DefaultSettings so a partially
// populated Settings still behaves sensibly.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MarketBandPct <= 0 {
		s.MarketBandPct = d.MarketBandPct
	}
	if s.TrendThresholdPct <= 0 {
		s.TrendThresholdPct = d.TrendThresholdPct
	}
	if s.MinTrendSample <= 0 {
		s.MinTrendSample = d.MinTrendSample
	}
	if s.MinIncrement < 0 {
		s.MinIncrement = 0
	}
	if s.FinalOfferPolicy != FinalDecline {
		s.FinalOfferPolicy = FinalCounter
	}
	if s.HighGapPct <= 0 {
		s.HighGapPct = d.HighGapPct
	}
	if s.PTOIncrementDays <= 0 {
		s.PTOIncrementDays = d.PTOIncrementDays
	}
	if s.RemoteIncrementDays <= 0 {
		s.RemoteIncrementDays = d.RemoteIncrementDays
	}
	if s.DefaultNegotiationGainPct <= 0 {
		s.DefaultNegotiationGainPct = d.DefaultNegotiationGainPct
	}
	if s.SkillPremiumPct <= 0 {
		s.SkillPremiumPct = d.SkillPremiumPct
	}
	if s.VelocityFrequencyWeight+s.VelocityMilestoneWeight+s.VelocityGrowthWeight <= 0 {
		s.VelocityFrequencyWeight = d.VelocityFrequencyWeight
		s.VelocityMilestoneWeight = d.VelocityMilestoneWeight
		s.VelocityGrowthWeight = d.VelocityGrowthWeight
	}
	return s
}
