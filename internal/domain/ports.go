package domain

import "context"

type ListingStore interface {
	// Write paths
	SaveProperty(ctx context.Context, p Property) (int64, error)
	SaveDescription(ctx context.Context, d Description) (int64, error)
	SaveSaleTerms(ctx context.Context, t SaleTerms) (int64, error)
	SaveDocument(ctx context.Context, d Document) (int64, error)
	SaveImage(ctx context.Context, i Image) (int64, error)
	SaveLocation(ctx context.Context, l Location) (int64, error)

	// Read paths
	FindComparables(ctx context.Context, outcode string) ([]Property, error)
}

type ReportStore interface {
	SaveReport(ctx context.Context, r Report) error
	GetReport(ctx context.Context, id string) (Report, error)
}

type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AreaStats is the set of postcode-keyed upstream lookups used by reports.
type AreaStats interface {
	PropertyDetails(ctx context.Context, postcode string) (map[string]any, error)
	EPC(ctx context.Context, postcode string) (map[string]any, error)
	Crime(ctx context.Context, postcode string) (map[string]any, error)
	Article4(ctx context.Context, postcode string) (map[string]any, error)
	BRMALHA(ctx context.Context, postcode string) (map[string]any, error)
	Demographics(ctx context.Context, postcode string) (map[string]any, error)
}

type Notifier interface {
	Notify(ctx context.Context, recipientID, reportID string) error
}

type FeedClient interface {
	FetchListings(ctx context.Context, page int) ([]map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
