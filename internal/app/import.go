package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"propvalue/internal/adapters/observability"
	"propvalue/internal/domain"
)

type ImportService struct {
	store    domain.ListingStore
	cache    domain.Cache
	validate *validator.Validate
	workers  int
}

func NewImportService(store domain.ListingStore, cache domain.Cache, workers int) *ImportService {
	if workers < 1 {
		workers = 1
	}
	return &ImportService{store: store, cache: cache, validate: NewValidator(), workers: workers}
}

// Import normalizes and saves each record. Outcomes are index-aligned with
// records; a record only fails when its property row cannot be saved.
func (s *ImportService) Import(ctx context.Context, records []map[string]any, importerID string) []domain.ImportOutcome {
	out := make([]domain.ImportOutcome, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, raw := range records {
		g.Go(func() error {
			out[i] = s.importOne(gctx, raw, importerID)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *ImportService) importOne(ctx context.Context, raw map[string]any, importerID string) domain.ImportOutcome {
	if err := ctx.Err(); err != nil {
		observability.ObserveImport("failed")
		return domain.ImportOutcome{Warnings: []string{"import cancelled: " + err.Error()}}
	}

	rec := Normalize(raw, importerID)
	warn := append([]string{}, rec.Warnings...)

	id, err := s.store.SaveProperty(ctx, rec.Property)
	if err != nil {
		log.Warn().Err(err).Str("ref", rec.Property.ExternalRef).Msg("property save failed")
		observability.ObserveImport("failed")
		return domain.ImportOutcome{Warnings: append(warn, "property: "+err.Error())}
	}

	// Sub-records are independent: one failing never blocks its siblings.
	rec.Description.PropertyID = id
	warn = s.saveSub(ctx, warn, "description", rec.Description, func() (int64, error) {
		return s.store.SaveDescription(ctx, rec.Description)
	})
	rec.SaleTerms.PropertyID = id
	warn = s.saveSub(ctx, warn, "sale_terms", rec.SaleTerms, func() (int64, error) {
		return s.store.SaveSaleTerms(ctx, rec.SaleTerms)
	})
	for i := range rec.Documents {
		d := rec.Documents[i]
		d.PropertyID = id
		warn = s.saveSub(ctx, warn, fmt.Sprintf("document[%d]", i), d, func() (int64, error) {
			return s.store.SaveDocument(ctx, d)
		})
	}
	for i := range rec.Images {
		img := rec.Images[i]
		img.PropertyID = id
		warn = s.saveSub(ctx, warn, fmt.Sprintf("image[%d]", i), img, func() (int64, error) {
			return s.store.SaveImage(ctx, img)
		})
	}
	rec.Location.PropertyID = id
	warn = s.saveSub(ctx, warn, "location", rec.Location, func() (int64, error) {
		return s.store.SaveLocation(ctx, rec.Location)
	})

	if s.cache != nil {
		_ = s.cache.Del(ctx, ComparablesKey(Outcode(rec.Property.Postcode)))
	}

	if len(warn) > 0 {
		observability.ObserveImport("warning")
	} else {
		observability.ObserveImport("ok")
	}
	log.Debug().Int64("id", id).Int("warnings", len(warn)).Msg("property imported")
	return domain.ImportOutcome{Success: true, PropertyID: &id, Warnings: warn}
}

func (s *ImportService) saveSub(ctx context.Context, warn []string, name string, v any, save func() (int64, error)) []string {
	if err := s.validate.StructCtx(ctx, v); err != nil {
		return append(warn, fmt.Sprintf("%s: invalid: %s", name, describeValidation(err)))
	}
	if _, err := save(); err != nil {
		log.Warn().Err(err).Str("record", name).Msg("sub-record save failed")
		return append(warn, fmt.Sprintf("%s: %v", name, err))
	}
	return warn
}
