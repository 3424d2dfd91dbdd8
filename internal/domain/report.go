package domain

import "time"

// Area is either a single value or a {minimum, maximum} range; any bound may be absent.
type Area struct {
	Value   *float64 `json:"value,omitempty" validate:"omitempty,gt=0"`
	Minimum *float64 `json:"minimum,omitempty" validate:"omitempty,gt=0"`
	Maximum *float64 `json:"maximum,omitempty" validate:"omitempty,gt=0"`
}

type PricingTarget struct {
	Area         Area
	PropertyType PropertyType
}

type PricePrediction struct {
	EffectiveArea   float64 `json:"effective_area"`
	PricePerAreaPA  float64 `json:"price_per_area_pa"`
	PricePerAreaPCM float64 `json:"price_per_area_pcm"`
	PricePA         float64 `json:"price_pa"`
	PricePCM        float64 `json:"price_pcm"`
}

type NarrativePoint struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
	RawText string `json:"raw_text"`
	Summary string `json:"summary"`
}

type NarrativeAnalysis struct {
	Points  []NarrativePoint `json:"points"`
	Summary string           `json:"summary"`
	RawText string           `json:"raw_text"`
}

type ReportQuery struct {
	Postcode     string       `json:"postcode" validate:"required,max=10"`
	PropertyType PropertyType `json:"property_type" validate:"required,property_type"`
	Area         Area         `json:"area"`
}

// Report is created once per request and never updated. Unavailable sources are nil.
type Report struct {
	ID                     string            `json:"id"`
	OwnerID                string            `json:"owner_id"`
	Postcode               string            `json:"postcode"`
	PropertyType           PropertyType      `json:"property_type"`
	Area                   Area              `json:"area"`
	ComparableCount        int               `json:"comparable_count"`
	PropertyDetails        map[string]any    `json:"property_details"`
	EPCData                map[string]any    `json:"epc_data"`
	AIAnalysis             NarrativeAnalysis `json:"ai_analysis"`
	PsychographicsAnalysis NarrativeAnalysis `json:"psychographics_analysis"`
	PredictedPrice         *PricePrediction  `json:"predicted_price"`
	CrimeData              map[string]any    `json:"crime_data"`
	Article4Data           map[string]any    `json:"article4_data"`
	BRMALHAData            map[string]any    `json:"brma_lha_data"`
	DemographicsData       map[string]any    `json:"demographics_data"`
	CreatedAt              time.Time         `json:"created_at"`
}
