package domain

import "time"

type PropertyType string

const (
	TypeOffice     PropertyType = "Office"
	TypeRetail     PropertyType = "Retail"
	TypeIndustrial PropertyType = "Industrial"
	TypeWarehouse  PropertyType = "Warehouse"
	TypeLeisure    PropertyType = "Leisure"
	TypeHealthcare PropertyType = "Healthcare"
	TypeLand       PropertyType = "Land"
	TypeMixedUse   PropertyType = "Mixed Use"
	TypeOther      PropertyType = "Other"
)

// PropertyTypes lists every member of the PropertyType enumeration.
var PropertyTypes = []PropertyType{
	TypeOffice, TypeRetail, TypeIndustrial, TypeWarehouse, TypeLeisure,
	TypeHealthcare, TypeLand, TypeMixedUse, TypeOther,
}

func (t PropertyType) Valid() bool {
	for _, v := range PropertyTypes {
		if v == t {
			return true
		}
	}
	return false
}

type TransactionType string

const (
	TransactionSale TransactionType = "sale"
	TransactionLet  TransactionType = "let"
)

type SaleStatus string

const (
	StatusAvailable  SaleStatus = "available"
	StatusUnderOffer SaleStatus = "under_offer"
	StatusSoldSTC    SaleStatus = "sold_stc"
	StatusSold       SaleStatus = "sold"
	StatusLetAgreed  SaleStatus = "let_agreed"
	StatusLet        SaleStatus = "let"
	StatusWithdrawn  SaleStatus = "withdrawn"
)

type SaleType string

const (
	SaleFreehold   SaleType = "freehold"
	SaleLeasehold  SaleType = "leasehold"
	SaleNewLease   SaleType = "new_lease"
	SaleAssignment SaleType = "assignment"
	SaleLicence    SaleType = "licence"
	SaleUnknown    SaleType = "unknown"
)

type PriceFrequency string

const (
	PerAnnum        PriceFrequency = "pa"
	PerMonth        PriceFrequency = "pcm"
	PerWeek         PriceFrequency = "pw"
	PerAreaPerAnnum PriceFrequency = "psf_pa"
	PerAreaPerMonth PriceFrequency = "psf_pcm"
	OneOff          PriceFrequency = "total"
)

// PlaceholderPostcode is substituted when a feed postcode cannot be normalized.
const PlaceholderPostcode = "ZZ99 9ZZ"

// MaxIdentityLen bounds importer and requester identifiers.
const MaxIdentityLen = 64

// Epoch is the fallback for missing or unparsable feed dates.
var Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

type EPC struct {
	Rating     string    `json:"rating"` // A..G or "Unknown"
	Score      int       `json:"score"`
	ValidUntil time.Time `json:"valid_until"`
}

type CouncilTax struct {
	Band          string  `json:"band"` // business rates properties report "N/A"
	RateableValue float64 `json:"rateable_value"`
}

type Planning struct {
	UseClass       string `json:"use_class"`
	ListedBuilding bool   `json:"listed_building"`
	Conservation   bool   `json:"conservation_area"`
}

type Geocoding struct {
	Source   string `json:"source"`   // feed|none
	Accuracy string `json:"accuracy"` // rooftop|postcode|unknown
}

type Property struct {
	ID              int64           `json:"id"`
	ImporterID      string          `json:"importer_id"`
	ExternalRef     string          `json:"external_ref"`
	BuildingName    string          `json:"building_name"`
	Street          string          `json:"street"`
	Locality        string          `json:"locality"`
	Postcode        string          `json:"postcode"`
	Country         string          `json:"country"`
	PropertyType    PropertyType    `json:"property_type"`
	PropertySubType string          `json:"property_sub_type"`
	SizeMinimum     float64         `json:"size_minimum"`
	SizeMaximum     float64         `json:"size_maximum"`
	PricePerAreaPA  float64         `json:"price_per_area_pa"`
	PricePerAreaPCM float64         `json:"price_per_area_pcm"`
	TransactionType TransactionType `json:"transaction_type"`
	Status          SaleStatus      `json:"status"`
	EPC             EPC             `json:"epc"`
	CouncilTax      CouncilTax      `json:"council_tax"`
	Planning        Planning        `json:"planning"`
	Latitude        *float64        `json:"latitude"`
	Longitude       *float64        `json:"longitude"`
	Geocoding       Geocoding       `json:"geocoding"`
	AvailableFrom   time.Time       `json:"available_from"`
	RawJSON         []byte          `json:"-"` // full feed payload
}

// Sub-records are saved separately and reference the property by PropertyID.

type Description struct {
	PropertyID int64 `validate:"required"`
	Summary    string
	Body       string
}

type SaleTerms struct {
	PropertyID     int64          `validate:"required"`
	SaleType       SaleType       `validate:"oneof=freehold leasehold new_lease assignment licence unknown"`
	Price          float64        `validate:"gte=0"`
	PriceFrequency PriceFrequency `validate:"oneof=pa pcm pw psf_pa psf_pcm total"`
	Qualifier      string
	Tenure         string
}

type Document struct {
	PropertyID  int64  `validate:"required"`
	Kind        string `validate:"oneof=brochure floorplan epc other"`
	URL         string `validate:"required"`
	Placeholder bool
}

type Image struct {
	PropertyID  int64  `validate:"required"`
	Position    int    `validate:"gte=0"`
	URL         string `validate:"required"`
	Caption     string
	Placeholder bool
}

type Location struct {
	PropertyID int64    `validate:"required"`
	Latitude   *float64 `validate:"omitempty,latitude"`
	Longitude  *float64 `validate:"omitempty,longitude"`
	Postcode   string   `validate:"required"`
	Outcode    string   `validate:"required"`
	Source     string   `validate:"oneof=feed none"`
}

// NormalizedRecord is the Normalizer output for one raw feed record: the
// canonical property plus sub-records still missing their PropertyID.
type NormalizedRecord struct {
	Property    Property
	Description Description
	SaleTerms   SaleTerms
	Documents   []Document
	Images      []Image
	Location    Location
	Warnings    []string
}

type ImportOutcome struct {
	Success    bool     `json:"success"`
	PropertyID *int64   `json:"property_id,omitempty"`
	Warnings   []string `json:"warnings"`
}
