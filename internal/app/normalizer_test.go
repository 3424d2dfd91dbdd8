package app_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propvalue/internal/app"
	"propvalue/internal/domain"
)

var ukPostcode = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]? [0-9][A-Z]{2}$`)

func TestNormalizePostcode(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"sw1a1aa", "SW1A 1AA", true},
		{"  ec1a   1bb ", "EC1A 1BB", true},
		{"M11AE", "M1 1AE", true},
		{"", domain.PlaceholderPostcode, false},
		{"not a postcode", domain.PlaceholderPostcode, false},
		{"12345", domain.PlaceholderPostcode, false},
	}
	for _, tc := range cases {
		got, ok := app.NormalizePostcode(tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
	}
}

func TestNormalize_PostcodeInvariant(t *testing.T) {
	for _, raw := range []any{"sw1a1aa", "", "???", 12345, nil, "W1 0AX extra"} {
		rec := app.Normalize(map[string]any{"POSTCODE": raw}, "imp")
		assert.Regexp(t, ukPostcode, rec.Property.Postcode, "raw %v", raw)
		assert.Equal(t, rec.Property.Postcode, rec.Location.Postcode)
	}
}

func TestNormalize_SizeInvariant(t *testing.T) {
	cases := []map[string]any{
		{},
		{"SQFT": "n/a"},
		{"SQFT": -40},
		{"SQFT": "0"},
		{"SQFT": "2,500 sq ft"},
		{"SQFT_MIN": 900, "SQFT_MAX": 300},
		{"SQFT_MAX": "1200"},
		{"area": map[string]any{"minimum": "abc", "maximum": 0.4}},
	}
	for _, raw := range cases {
		p := app.Normalize(raw, "imp").Property
		assert.GreaterOrEqual(t, p.SizeMinimum, 1.0, "raw %v", raw)
		assert.GreaterOrEqual(t, p.SizeMaximum, 1.0, "raw %v", raw)
		assert.LessOrEqual(t, p.SizeMinimum, p.SizeMaximum, "raw %v", raw)
	}

	p := app.Normalize(map[string]any{"SQFT": "2,500 sq ft"}, "imp").Property
	assert.Equal(t, 2500.0, p.SizeMinimum)
	assert.Equal(t, 2500.0, p.SizeMaximum)
}

func TestNormalize_BLMRecord(t *testing.T) {
	raw := map[string]any{
		"AGENT_REF":           "AG-1",
		"POSTCODE1":           "sw1a",
		"POSTCODE2":           "1aa",
		"PROPERTY_TYPE":       "Warehouse / Distribution",
		"SQFT":                "1,000",
		"PRICE":               "25,000",
		"PRICE_FREQUENCY":     "per annum",
		"TRANS_TYPE_ID":       "2",
		"STATUS_ID":           "3",
		"EPC_RATING":          "c",
		"MEDIA_IMAGE_00":      "https://cdn.example.com/1.jpg",
		"MEDIA_IMAGE_TEXT_00": "Front",
		"MEDIA_FLOOR_PLAN_00": "https://cdn.example.com/fp.pdf",
		"LATITUDE":            "51.5",
		"LONGITUDE":           "-0.14",
		"AVAILABLE_FROM":      "2024-03-01",
	}
	rec := app.Normalize(raw, "importer-7")
	p := rec.Property

	assert.Equal(t, "importer-7", p.ImporterID)
	assert.Equal(t, "AG-1", p.ExternalRef)
	assert.Equal(t, "SW1A 1AA", p.Postcode)
	assert.Equal(t, domain.TypeWarehouse, p.PropertyType)
	assert.Equal(t, "Warehouse", p.PropertySubType)
	assert.Equal(t, domain.TransactionLet, p.TransactionType)
	assert.Equal(t, domain.StatusUnderOffer, p.Status)
	assert.Equal(t, 25.0, p.PricePerAreaPA)
	assert.Equal(t, 2.08, p.PricePerAreaPCM)
	assert.Equal(t, "C", p.EPC.Rating)
	assert.Equal(t, "GB", p.Country)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), p.AvailableFrom)
	require.NotNil(t, p.Latitude)
	require.NotNil(t, p.Longitude)
	assert.InDelta(t, -0.14, *p.Longitude, 1e-9)
	assert.Equal(t, "feed", p.Geocoding.Source)
	assert.NotEmpty(t, p.RawJSON)

	assert.Equal(t, domain.PerAnnum, rec.SaleTerms.PriceFrequency)
	assert.Equal(t, 25000.0, rec.SaleTerms.Price)
	assert.Equal(t, "Warehouse in SW1A", rec.Description.Summary)
	assert.Equal(t, "SW1A", rec.Location.Outcode)

	require.Len(t, rec.Images, 1)
	assert.Equal(t, "Front", rec.Images[0].Caption)
	assert.False(t, rec.Images[0].Placeholder)
	require.Len(t, rec.Documents, 1)
	assert.Equal(t, "floorplan", rec.Documents[0].Kind)
	assert.Empty(t, rec.Warnings)
}

func TestNormalize_EmptyRecordFallsBack(t *testing.T) {
	rec := app.Normalize(map[string]any{}, "imp")
	p := rec.Property

	assert.Equal(t, domain.PlaceholderPostcode, p.Postcode)
	assert.Equal(t, domain.TypeOther, p.PropertyType)
	assert.Equal(t, domain.TransactionSale, p.TransactionType)
	assert.Equal(t, domain.StatusAvailable, p.Status)
	assert.Equal(t, domain.Epoch, p.AvailableFrom)
	assert.Equal(t, "Unknown", p.EPC.Rating)
	assert.Equal(t, "N/A", p.CouncilTax.Band)
	assert.Nil(t, p.Latitude)
	assert.Equal(t, "none", rec.Location.Source)

	require.Len(t, rec.Images, 1)
	assert.True(t, rec.Images[0].Placeholder)
	assert.Equal(t, app.PlaceholderImageURL, rec.Images[0].URL)
	require.Len(t, rec.Documents, 1)
	assert.True(t, rec.Documents[0].Placeholder)
	assert.Equal(t, "brochure", rec.Documents[0].Kind)
	assert.Len(t, rec.Warnings, 4)
}

func TestNormalize_CategoryAndFrequencyTables(t *testing.T) {
	cases := []struct {
		typ  string
		want domain.PropertyType
	}{
		{"Retail Shop", domain.TypeRetail},
		{"SERVICED OFFICE", domain.TypeOffice},
		{"Mixed use - retail & residential", domain.TypeMixedUse},
		{"Restaurant / Cafe", domain.TypeLeisure},
		{"Medical centre", domain.TypeHealthcare},
		{"Something odd", domain.TypeOther},
	}
	for _, tc := range cases {
		got := app.Normalize(map[string]any{"type": tc.typ}, "imp").Property.PropertyType
		assert.Equal(t, tc.want, got, "type %q", tc.typ)
	}

	// £1,500 pcm on 600 sq ft: 30.00 pa, 2.50 pcm per sq ft
	p := app.Normalize(map[string]any{
		"price": "£1,500", "price_frequency": "PCM", "size": 600, "transaction_type": "To Let",
	}, "imp").Property
	assert.Equal(t, 30.0, p.PricePerAreaPA)
	assert.Equal(t, 2.5, p.PricePerAreaPCM)

	p = app.Normalize(map[string]any{"price": "12.50", "price_frequency": "psf", "size": 800}, "imp").Property
	assert.Equal(t, 12.5, p.PricePerAreaPA)
}

func TestNormalize_NestedAliasesAndMediaObjects(t *testing.T) {
	rec := app.Normalize(map[string]any{
		"address": map[string]any{"postcode": "ls1 4ap", "town": "Leeds"},
		"images": []any{
			map[string]any{"url": "https://cdn.example.com/a.jpg", "caption": "Reception"},
			"https://cdn.example.com/b.jpg",
			42,
		},
		"documents":      []any{map[string]any{"href": "https://cdn.example.com/epc-cert.pdf", "name": "EPC"}},
		"available_from": "not a date",
	}, "imp")

	assert.Equal(t, "LS1 4AP", rec.Property.Postcode)
	assert.Equal(t, "Leeds", rec.Property.Locality)
	require.Len(t, rec.Images, 2)
	assert.Equal(t, 1, rec.Images[1].Position)
	require.Len(t, rec.Documents, 1)
	assert.Equal(t, "epc", rec.Documents[0].Kind)
	assert.Equal(t, domain.Epoch, rec.Property.AvailableFrom)
}

func TestNormalize_CountryAndColumnWidths(t *testing.T) {
	cases := []struct {
		in   string
		want string
		warn bool
	}{
		{"United Kingdom", "GB", false},
		{"england", "GB", false},
		{"Republic of Ireland", "IE", false},
		{"ie", "IE", false},
		{"", "GB", false},
		{"Narnia", "GB", true},
	}
	for _, tc := range cases {
		rec := app.Normalize(map[string]any{"COUNTRY": tc.in, "IMAGES": []any{"a.jpg"}, "DOCUMENTS": []any{"b.pdf"}}, "imp")
		assert.Equal(t, tc.want, rec.Property.Country, "country %q", tc.in)
		warned := false
		for _, w := range rec.Warnings {
			warned = warned || strings.HasPrefix(w, "country ")
		}
		assert.Equal(t, tc.warn, warned, "country %q warnings %v", tc.in, rec.Warnings)
	}

	long := strings.Repeat("é", 300)
	rec := app.Normalize(map[string]any{
		"ADDRESS_2":         long,
		"PROPERTY_SUB_TYPE": long,
		"USE_CLASS":         long,
		"SUMMARY":           long,
		"IMAGES":            []any{"https://cdn.example.com/" + strings.Repeat("x", 1100) + ".jpg", "https://cdn.example.com/ok.jpg"},
	}, strings.Repeat("i", 100))
	p := rec.Property
	assert.Equal(t, domain.MaxIdentityLen, len(p.ImporterID))
	assert.LessOrEqual(t, len([]rune(p.Street)), 255)
	assert.LessOrEqual(t, len([]rune(p.PropertySubType)), 128)
	assert.LessOrEqual(t, len([]rune(p.Planning.UseClass)), 32)
	assert.LessOrEqual(t, len([]rune(rec.Description.Summary)), 512)
	require.Len(t, rec.Images, 1)
	assert.Equal(t, "https://cdn.example.com/ok.jpg", rec.Images[0].URL)
}
