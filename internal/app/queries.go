package app

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"propvalue/internal/domain"
)

// cached values above this size are served but not stored
const maxCachedBytes = 1_000_000

type QueryService struct {
	listings domain.ListingStore
	reports  domain.ReportStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(l domain.ListingStore, r domain.ReportStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{listings: l, reports: r, cache: c, cacheTTL: ttl}
}

func ComparablesKey(outcode string) string { return "comparables:" + strings.ToUpper(outcode) }

func reportKey(id string) string { return "report:" + id }

// Comparables returns the listings sharing an outward code, read-through cached.
func (s *QueryService) Comparables(ctx context.Context, outcode string) ([]domain.Property, error) {
	key := ComparablesKey(outcode)
	var out []domain.Property
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	ps, err := s.listings.FindComparables(ctx, strings.ToUpper(outcode))
	if err != nil {
		return nil, err
	}

	// copy to avoid aliasing the store's backing array
	cp := deepCopyProperties(ps)
	s.store(ctx, key, cp)
	return cp, nil
}

func (s *QueryService) GetReport(ctx context.Context, id string) (domain.Report, error) {
	key := reportKey(id)
	var rep domain.Report
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &rep); ok {
			return rep, nil
		}
	}
	rep, err := s.reports.GetReport(ctx, id)
	if err != nil {
		return domain.Report{}, err
	}
	// reports are immutable, so a cached copy never goes stale
	s.store(ctx, key, rep)
	return rep, nil
}

func (s *QueryService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if b, _ := json.Marshal(v); len(b) < maxCachedBytes {
		_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
	}
}

func deepCopyProperties(in []domain.Property) []domain.Property {
	if len(in) == 0 {
		return []domain.Property{}
	}
	out := make([]domain.Property, len(in))
	copy(out, in)
	for i := range out {
		if in[i].Latitude != nil {
			v := *in[i].Latitude
			out[i].Latitude = &v
		}
		if in[i].Longitude != nil {
			v := *in[i].Longitude
			out[i].Longitude = &v
		}
		out[i].RawJSON = nil
	}
	return out
}
