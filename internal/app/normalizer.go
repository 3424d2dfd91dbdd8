package app

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"propvalue/internal/domain"
)

/********** alias registries (single source of truth) **********/

var propertyAliases = map[string][]string{
	"ref":        {"AGENT_REF", "PROPERTY_ID", "id", "reference", "listing.id"},
	"building":   {"BUILDING_NAME", "ADDRESS_1", "building", "address.building", "house_name_number"},
	"street":     {"STREET", "ADDRESS_2", "street", "address.street", "address.line1"},
	"locality":   {"TOWN", "LOCALITY", "ADDRESS_3", "locality", "town", "address.town", "address.city"},
	"postcode":   {"POSTCODE", "postcode", "address.postcode", "post_code", "zip"},
	"outcode":    {"POSTCODE1", "address.outcode"},
	"incode":     {"POSTCODE2", "address.incode"},
	"country":    {"COUNTRY", "country", "address.country", "country_code"},
	"type":       {"PROPERTY_TYPE", "PROP_SUB_ID", "type", "propertyType", "property_type", "category"},
	"sub_type":   {"PROPERTY_SUB_TYPE", "sub_type", "propertySubType", "property_sub_type"},
	"size":       {"SQFT", "size", "floor_area", "area.value", "size_sqft"},
	"size_min":   {"SQFT_MIN", "size_min", "area.minimum", "size.minimum"},
	"size_max":   {"SQFT_MAX", "size_max", "area.maximum", "size.maximum"},
	"price":      {"PRICE", "price", "rent", "asking_price", "price.amount"},
	"frequency":  {"PRICE_FREQUENCY", "price_frequency", "rent_frequency", "price.frequency", "PRICE_QUALIFIER"},
	"qualifier":  {"PRICE_QUALIFIER", "price_qualifier", "price.qualifier"},
	"trans_type": {"TRANS_TYPE_ID", "TRANS_TYPE", "transaction_type", "channel", "listing_type"},
	"status":     {"STATUS_ID", "STATUS", "status", "availability"},
	"sale_type":  {"SALE_TYPE", "TENURE_TYPE", "sale_type", "tenure", "tenure_type"},
	"tenure":     {"TENURE", "tenure", "lease_terms"},
	"epc":        {"EPC_RATING", "epc_rating", "epc.rating", "energy_rating"},
	"epc_score":  {"EPC_SCORE", "epc_score", "epc.score"},
	"epc_valid":  {"EPC_EXPIRY", "epc_expiry", "epc.valid_until"},
	"tax_band":   {"COUNCIL_TAX_BAND", "council_tax_band", "council_tax.band"},
	"rateable":   {"RATEABLE_VALUE", "rateable_value", "business_rates.rateable_value"},
	"use_class":  {"USE_CLASS", "PLANNING_USE_CLASS", "use_class", "planning.use_class"},
	"listed":     {"LISTED_BUILDING", "listed_building", "planning.listed"},
	"conserv":    {"CONSERVATION_AREA", "conservation_area", "planning.conservation_area"},
	"lat":        {"LATITUDE", "latitude", "lat", "location.lat", "geo.lat"},
	"lon":        {"LONGITUDE", "longitude", "lon", "lng", "location.lng", "location.lon", "geo.lng"},
	"available":  {"AVAILABLE_FROM", "LET_DATE_AVAILABLE", "available_from", "date_available"},
	"summary":    {"SUMMARY", "summary", "short_description", "headline"},
	"body":       {"DESCRIPTION", "description", "full_description", "long_description"},
	"images":     {"IMAGES", "images", "photos", "media.images"},
	"documents":  {"DOCUMENTS", "documents", "brochures", "media.documents"},
}

/********** fixed lookup tables (ordered: first match wins) **********/

type keyword[T any] struct {
	kw  string
	val T
}

var propertyTypeKeywords = []keyword[domain.PropertyType]{
	{"mixed", domain.TypeMixedUse},
	{"warehouse", domain.TypeWarehouse},
	{"distribution", domain.TypeWarehouse},
	{"logistics", domain.TypeWarehouse},
	{"storage", domain.TypeWarehouse},
	{"industrial", domain.TypeIndustrial},
	{"factory", domain.TypeIndustrial},
	{"workshop", domain.TypeIndustrial},
	{"trade counter", domain.TypeIndustrial},
	{"office", domain.TypeOffice},
	{"serviced", domain.TypeOffice},
	{"shop", domain.TypeRetail},
	{"retail", domain.TypeRetail},
	{"showroom", domain.TypeRetail},
	{"restaurant", domain.TypeLeisure},
	{"cafe", domain.TypeLeisure},
	{"pub", domain.TypeLeisure},
	{"hotel", domain.TypeLeisure},
	{"leisure", domain.TypeLeisure},
	{"gym", domain.TypeLeisure},
	{"medical", domain.TypeHealthcare},
	{"clinic", domain.TypeHealthcare},
	{"surgery", domain.TypeHealthcare},
	{"care home", domain.TypeHealthcare},
	{"healthcare", domain.TypeHealthcare},
	{"land", domain.TypeLand},
	{"development", domain.TypeLand},
}

var defaultSubTypes = map[domain.PropertyType]string{
	domain.TypeOffice:     "Office",
	domain.TypeRetail:     "Shop",
	domain.TypeIndustrial: "Industrial Unit",
	domain.TypeWarehouse:  "Warehouse",
	domain.TypeLeisure:    "Leisure",
	domain.TypeHealthcare: "Medical",
	domain.TypeLand:       "Land",
	domain.TypeMixedUse:   "Mixed Use",
	domain.TypeOther:      "Commercial Property",
}

// BLM feeds send numeric status/transaction ids; text feeds send words.
var statusKeywords = []keyword[domain.SaleStatus]{
	{"under offer", domain.StatusUnderOffer},
	{"sold stc", domain.StatusSoldSTC},
	{"subject to contract", domain.StatusSoldSTC},
	{"let agreed", domain.StatusLetAgreed},
	{"withdrawn", domain.StatusWithdrawn},
	{"sold", domain.StatusSold},
}

var statusIDs = map[string]domain.SaleStatus{
	"0": domain.StatusAvailable,
	"1": domain.StatusSoldSTC,
	"2": domain.StatusSoldSTC,
	"3": domain.StatusUnderOffer,
	"4": domain.StatusUnderOffer,
	"5": domain.StatusLetAgreed,
	"6": domain.StatusSold,
	"7": domain.StatusWithdrawn,
}

var transactionKeywords = []keyword[domain.TransactionType]{
	{"let", domain.TransactionLet},
	{"rent", domain.TransactionLet},
	{"lease", domain.TransactionLet},
	{"sale", domain.TransactionSale},
	{"sell", domain.TransactionSale},
	{"buy", domain.TransactionSale},
}

var saleTypeKeywords = []keyword[domain.SaleType]{
	{"freehold", domain.SaleFreehold},
	{"new lease", domain.SaleNewLease},
	{"assignment", domain.SaleAssignment},
	{"licence", domain.SaleLicence},
	{"license", domain.SaleLicence},
	{"leasehold", domain.SaleLeasehold},
}

var frequencyKeywords = []keyword[domain.PriceFrequency]{
	{"psf pcm", domain.PerAreaPerMonth},
	{"per sq ft per month", domain.PerAreaPerMonth},
	{"per sq ft pcm", domain.PerAreaPerMonth},
	{"psf", domain.PerAreaPerAnnum},
	{"per sq ft", domain.PerAreaPerAnnum},
	{"sqft", domain.PerAreaPerAnnum},
	{"pcm", domain.PerMonth},
	{"month", domain.PerMonth},
	{"pw", domain.PerWeek},
	{"week", domain.PerWeek},
	{"annum", domain.PerAnnum},
	{"year", domain.PerAnnum},
	{"pa", domain.PerAnnum},
	{"total", domain.OneOff},
	{"guide", domain.OneOff},
	{"offers", domain.OneOff},
}

func lookupKeyword[T any](table []keyword[T], s string, def T) T {
	low := strings.ToLower(s)
	if low == "" {
		return def
	}
	for _, k := range table {
		if strings.Contains(low, k.kw) {
			return k.val
		}
	}
	return def
}

/********** tiny helpers **********/

var (
	numberRe   = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)`)
	postcodeRe = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]? [0-9][A-Z]{2}$`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// firstAlias returns the first present (non-nil) value for a named alias set.
func firstAlias(m map[string]any, key string) any {
	for _, p := range propertyAliases[key] {
		if v := lookupAny(m, p); v != nil {
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

// coerceString stringifies any scalar; empty results fall back to def.
func coerceString(v any, def string) string {
	var s string
	switch t := v.(type) {
	case nil:
		return def
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// coerceNumber extracts the first signed decimal from the stringified value.
func coerceNumber(v any, def float64) float64 {
	s := strings.ReplaceAll(coerceString(v, ""), ",", "")
	m := numberRe.FindString(s)
	if m == "" {
		return def
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func coerceBool(v any) bool {
	switch strings.ToLower(coerceString(v, "")) {
	case "1", "y", "yes", "true", "t":
		return true
	}
	return false
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// coerceDate parses the known feed layouts; anything else yields domain.Epoch.
func coerceDate(v any) time.Time {
	s := coerceString(v, "")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return domain.Epoch
}

// NormalizePostcode uppercases, inserts the missing space before the inward
// code and falls back to domain.PlaceholderPostcode. ok is false on fallback.
func NormalizePostcode(raw string) (pc string, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = spaceRe.ReplaceAllString(s, " ")
	if !strings.Contains(s, " ") && len(s) > 3 {
		s = s[:len(s)-3] + " " + s[len(s)-3:]
	}
	if !postcodeRe.MatchString(s) {
		return domain.PlaceholderPostcode, false
	}
	return s, true
}

// Outcode returns the outward half of a normalized postcode.
func Outcode(postcode string) string {
	if i := strings.IndexByte(postcode, ' '); i > 0 {
		return postcode[:i]
	}
	return postcode
}

func optFloat(v any) *float64 {
	if v == nil {
		return nil
	}
	f := coerceNumber(v, math.NaN())
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// collectMedia accepts []any with either strings or {url/src/href, caption},
// then falls back to numbered BLM columns (MEDIA_IMAGE_00, ...). URLs too
// long to store are dropped; a truncated URL is worse than none.
func collectMedia(m map[string]any, aliasKey, blmPrefix string) (urls, captions []string) {
	if raw, ok := firstAlias(m, aliasKey).([]any); ok {
		for _, it := range raw {
			switch t := it.(type) {
			case string:
				if u := strings.TrimSpace(t); u != "" && len(u) <= maxURLLen {
					urls = append(urls, u)
					captions = append(captions, "")
				}
			case map[string]any:
				u := coerceString(t["url"], coerceString(t["src"], coerceString(t["href"], "")))
				if u != "" && len(u) <= maxURLLen {
					urls = append(urls, u)
					captions = append(captions, clip(coerceString(t["caption"], coerceString(t["name"], "")), maxCaptionLen))
				}
			}
		}
	}
	if len(urls) > 0 || blmPrefix == "" {
		return urls, captions
	}
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("%s%02d", blmPrefix, i)
		u := coerceString(m[key], "")
		if u == "" || len(u) > maxURLLen {
			continue
		}
		urls = append(urls, u)
		captions = append(captions, clip(coerceString(m[fmt.Sprintf("%s_TEXT_%02d", strings.TrimSuffix(blmPrefix, "_"), i)], ""), maxCaptionLen))
	}
	return urls, captions
}

// column widths of the listing tables
const (
	maxURLLen      = 1024
	maxCaptionLen  = 255
	maxAddressLen  = 255
	maxRefLen      = 128
	maxSubTypeLen  = 128
	maxUseClassLen = 32
	maxSummaryLen  = 512
	maxQualLen     = 64
	maxTenureLen   = 128
)

// clip truncates s to n characters.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

var countryNames = map[string]string{
	"united kingdom":      "GB",
	"uk":                  "GB",
	"gbr":                 "GB",
	"great britain":       "GB",
	"britain":             "GB",
	"england":             "GB",
	"scotland":            "GB",
	"wales":               "GB",
	"northern ireland":    "GB",
	"ireland":             "IE",
	"republic of ireland": "IE",
	"isle of man":         "IM",
	"jersey":              "JE",
	"guernsey":            "GG",
}

var isoAlpha2Re = regexp.MustCompile(`^[A-Za-z]{2}$`)

// normalizeCountry resolves names and two-letter codes to ISO 3166 alpha-2,
// falling back to GB.
func normalizeCountry(s string) (code string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "GB", true
	}
	if c, found := countryNames[strings.ToLower(s)]; found {
		return c, true
	}
	if isoAlpha2Re.MatchString(s) {
		return strings.ToUpper(s), true
	}
	return "GB", false
}

/********** normalizer **********/

const (
	PlaceholderImageURL    = "https://assets.propvalue.co.uk/placeholders/property.jpg"
	PlaceholderBrochureURL = "https://assets.propvalue.co.uk/placeholders/brochure.pdf"
)

// Normalize maps one raw feed record into the canonical property and its
// sub-records. It never fails: every field has a deterministic fallback and
// anything worth knowing about is reported in Warnings.
func Normalize(raw map[string]any, importerID string) domain.NormalizedRecord {
	var warn []string

	rawJSON, err := json.Marshal(raw)
	if err != nil {
		log.Error().Err(err).Str("context", "Normalize").Msg("failed to marshal feed record to JSON")
	}

	// postcode: full field first, else POSTCODE1 + POSTCODE2
	pcRaw := coerceString(firstAlias(raw, "postcode"), "")
	if pcRaw == "" {
		pcRaw = strings.TrimSpace(coerceString(firstAlias(raw, "outcode"), "") + " " + coerceString(firstAlias(raw, "incode"), ""))
	}
	postcode, ok := NormalizePostcode(pcRaw)
	if !ok {
		warn = append(warn, fmt.Sprintf("postcode %q invalid, placeholder used", pcRaw))
	}

	ptype := lookupKeyword(propertyTypeKeywords, coerceString(firstAlias(raw, "type"), ""), domain.TypeOther)
	subType := clip(coerceString(firstAlias(raw, "sub_type"), defaultSubTypes[ptype]), maxSubTypeLen)

	countryRaw := coerceString(firstAlias(raw, "country"), "")
	country, ok := normalizeCountry(countryRaw)
	if !ok {
		warn = append(warn, fmt.Sprintf("country %q unrecognized, defaulted to GB", countryRaw))
	}

	// sizes: explicit range wins, single SQFT fills whichever bound is missing
	single := coerceNumber(firstAlias(raw, "size"), 0)
	sizeMin := coerceNumber(firstAlias(raw, "size_min"), single)
	sizeMax := coerceNumber(firstAlias(raw, "size_max"), single)
	if sizeMin <= 0 && sizeMax > 0 {
		sizeMin = sizeMax
	}
	if sizeMax <= 0 && sizeMin > 0 {
		sizeMax = sizeMin
	}
	if sizeMin < 1 || sizeMax < 1 {
		warn = append(warn, "size missing or invalid, defaulted to 1")
	}
	sizeMin, sizeMax = math.Max(sizeMin, 1), math.Max(sizeMax, 1)
	if sizeMin > sizeMax {
		sizeMin, sizeMax = sizeMax, sizeMin
	}

	transRaw := coerceString(firstAlias(raw, "trans_type"), "")
	trans := lookupKeyword(transactionKeywords, transRaw, domain.TransactionSale)
	switch transRaw {
	case "1":
		trans = domain.TransactionSale
	case "2":
		trans = domain.TransactionLet
	}

	statusRaw := coerceString(firstAlias(raw, "status"), "")
	status, known := statusIDs[statusRaw]
	if !known {
		status = lookupKeyword(statusKeywords, statusRaw, domain.StatusAvailable)
		if status == domain.StatusAvailable && strings.EqualFold(statusRaw, "let") {
			status = domain.StatusLet
		}
	}

	price := math.Max(coerceNumber(firstAlias(raw, "price"), 0), 0)
	defFreq := domain.OneOff
	if trans == domain.TransactionLet {
		defFreq = domain.PerAnnum
	}
	freq := lookupKeyword(frequencyKeywords, coerceString(firstAlias(raw, "frequency"), ""), defFreq)
	perPA, perPCM := perAreaRates(price, freq, (sizeMin+sizeMax)/2)

	lat, lon := optFloat(firstAlias(raw, "lat")), optFloat(firstAlias(raw, "lon"))
	geo := domain.Geocoding{Source: "none", Accuracy: "unknown"}
	if lat != nil && lon != nil {
		geo = domain.Geocoding{Source: "feed", Accuracy: "rooftop"}
	} else {
		lat, lon = nil, nil
	}

	p := domain.Property{
		ImporterID:      clip(importerID, domain.MaxIdentityLen),
		ExternalRef:     clip(coerceString(firstAlias(raw, "ref"), ""), maxRefLen),
		BuildingName:    clip(coerceString(firstAlias(raw, "building"), ""), maxAddressLen),
		Street:          clip(coerceString(firstAlias(raw, "street"), ""), maxAddressLen),
		Locality:        clip(coerceString(firstAlias(raw, "locality"), ""), maxAddressLen),
		Postcode:        postcode,
		Country:         country,
		PropertyType:    ptype,
		PropertySubType: subType,
		SizeMinimum:     sizeMin,
		SizeMaximum:     sizeMax,
		PricePerAreaPA:  perPA,
		PricePerAreaPCM: perPCM,
		TransactionType: trans,
		Status:          status,
		EPC:             normalizeEPC(raw),
		CouncilTax: domain.CouncilTax{
			Band:          normalizeBand(coerceString(firstAlias(raw, "tax_band"), "")),
			RateableValue: math.Max(coerceNumber(firstAlias(raw, "rateable"), 0), 0),
		},
		Planning: domain.Planning{
			UseClass:       clip(coerceString(firstAlias(raw, "use_class"), "Unknown"), maxUseClassLen),
			ListedBuilding: coerceBool(firstAlias(raw, "listed")),
			Conservation:   coerceBool(firstAlias(raw, "conserv")),
		},
		Latitude:      lat,
		Longitude:     lon,
		Geocoding:     geo,
		AvailableFrom: coerceDate(firstAlias(raw, "available")),
		RawJSON:       rawJSON,
	}

	rec := domain.NormalizedRecord{
		Property: p,
		Description: domain.Description{
			Summary: clip(coerceString(firstAlias(raw, "summary"), defaultSummary(p)), maxSummaryLen),
			Body:    coerceString(firstAlias(raw, "body"), ""),
		},
		SaleTerms: domain.SaleTerms{
			SaleType:       lookupKeyword(saleTypeKeywords, coerceString(firstAlias(raw, "sale_type"), ""), domain.SaleUnknown),
			Price:          price,
			PriceFrequency: freq,
			Qualifier:      clip(coerceString(firstAlias(raw, "qualifier"), ""), maxQualLen),
			Tenure:         clip(coerceString(firstAlias(raw, "tenure"), ""), maxTenureLen),
		},
		Location: domain.Location{
			Latitude:  lat,
			Longitude: lon,
			Postcode:  postcode,
			Outcode:   Outcode(postcode),
			Source:    geo.Source,
		},
	}

	imgs, caps := collectMedia(raw, "images", "MEDIA_IMAGE_")
	for i, u := range imgs {
		rec.Images = append(rec.Images, domain.Image{Position: i, URL: u, Caption: caps[i]})
	}
	if len(rec.Images) == 0 {
		rec.Images = []domain.Image{{URL: PlaceholderImageURL, Caption: "Image coming soon", Placeholder: true}}
		warn = append(warn, "no images in feed, placeholder added")
	}

	docs, names := collectMedia(raw, "documents", "MEDIA_DOCUMENT_")
	for i, u := range docs {
		rec.Documents = append(rec.Documents, domain.Document{Kind: documentKind(u, names[i]), URL: u})
	}
	plans, _ := collectMedia(raw, "", "MEDIA_FLOOR_PLAN_")
	for _, u := range plans {
		rec.Documents = append(rec.Documents, domain.Document{Kind: "floorplan", URL: u})
	}
	if len(rec.Documents) == 0 {
		rec.Documents = []domain.Document{{Kind: "brochure", URL: PlaceholderBrochureURL, Placeholder: true}}
		warn = append(warn, "no documents in feed, placeholder added")
	}

	rec.Warnings = warn
	return rec
}

// perAreaRates converts a periodic price into annual and monthly rates per
// area unit. Capital (one-off) prices are not rents and yield no rate.
func perAreaRates(price float64, freq domain.PriceFrequency, size float64) (pa, pcm float64) {
	if price <= 0 || size <= 0 || freq == domain.OneOff {
		return 0, 0
	}
	switch freq {
	case domain.PerAreaPerAnnum:
		pa = price
	case domain.PerAreaPerMonth:
		pa = price * 12
	case domain.PerMonth:
		pa = price * 12 / size
	case domain.PerWeek:
		pa = price * 52 / size
	default: // PerAnnum
		pa = price / size
	}
	return round2(pa), round2(pa / 12)
}

func normalizeEPC(raw map[string]any) domain.EPC {
	e := domain.EPC{Rating: "Unknown", ValidUntil: coerceDate(firstAlias(raw, "epc_valid"))}
	if r := strings.ToUpper(coerceString(firstAlias(raw, "epc"), "")); r != "" && r[0] >= 'A' && r[0] <= 'G' {
		e.Rating = r[:1]
		// "C+" style ratings keep the modifier
		if len(r) > 1 && r[1] == '+' {
			e.Rating = r[:2]
		}
	}
	if s := coerceNumber(firstAlias(raw, "epc_score"), 0); s > 0 && s <= 500 {
		e.Score = int(s)
	}
	return e
}

func normalizeBand(s string) string {
	s = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(strings.ToLower(s), "band")))
	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'H' {
		return s
	}
	return "N/A"
}

func documentKind(url, name string) string {
	low := strings.ToLower(url + " " + name)
	switch {
	case strings.Contains(low, "floor"):
		return "floorplan"
	case strings.Contains(low, "epc") || strings.Contains(low, "energy"):
		return "epc"
	case strings.Contains(low, "brochure") || strings.HasSuffix(strings.ToLower(url), ".pdf"):
		return "brochure"
	}
	return "other"
}

func defaultSummary(p domain.Property) string {
	loc := p.Locality
	if loc == "" {
		loc = Outcode(p.Postcode)
	}
	return fmt.Sprintf("%s in %s", p.PropertySubType, loc)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
