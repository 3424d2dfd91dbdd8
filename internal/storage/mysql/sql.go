package mysql

const insertPropertySQL = `
INSERT INTO properties
  (importer_id, external_ref, building_name, street, locality, postcode, country,
   property_type, property_sub_type, size_minimum, size_maximum,
   price_per_area_pa, price_per_area_pcm, transaction_type, status,
   epc_rating, epc_score, epc_valid_until, council_tax_band, rateable_value,
   use_class, listed_building, conservation_area,
   latitude, longitude, geocoding_source, geocoding_accuracy, available_from, raw)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertDescriptionSQL = `
INSERT INTO property_descriptions (property_id, summary, body)
VALUES (?, ?, ?)
`

const insertSaleTermsSQL = `
INSERT INTO property_sale_terms (property_id, sale_type, price, price_frequency, qualifier, tenure)
VALUES (?, ?, ?, ?, ?, ?)
`

const insertDocumentSQL = `
INSERT INTO property_documents (property_id, kind, url, placeholder)
VALUES (?, ?, ?, ?)
`

const insertImageSQL = `
INSERT INTO property_images (property_id, position, url, caption, placeholder)
VALUES (?, ?, ?, ?, ?)
`

const insertLocationSQL = `
INSERT INTO property_locations (property_id, latitude, longitude, postcode, outcode, source)
VALUES (?, ?, ?, ?, ?, ?)
`

const insertReportSQL = `
INSERT INTO reports
  (id, owner_id, postcode, property_type, area, comparable_count,
   property_details, epc_data, ai_analysis, psychographics_analysis, predicted_price,
   crime_data, article4_data, brma_lha_data, demographics_data, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Comparables share the outward code: "SW1A" matches "SW1A 1AA" but not "SW1 1AA".
// Ordered by id so the pricing sum is reproducible.
const findComparablesSQL = `
SELECT
  id, importer_id, external_ref, building_name, street, locality, postcode, country,
  property_type, property_sub_type, size_minimum, size_maximum,
  price_per_area_pa, price_per_area_pcm, transaction_type, status,
  epc_rating, epc_score, epc_valid_until, council_tax_band, rateable_value,
  use_class, listed_building, conservation_area,
  latitude, longitude, geocoding_source, geocoding_accuracy, available_from
FROM properties
WHERE postcode LIKE CONCAT(?, ' %') AND transaction_type = 'let'
ORDER BY id
LIMIT ?
`

const getReportSQL = `
SELECT
  id, owner_id, postcode, property_type, area, comparable_count,
  property_details, epc_data, ai_analysis, psychographics_analysis, predicted_price,
  crime_data, article4_data, brma_lha_data, demographics_data, created_at
FROM reports
WHERE id = ?
`
