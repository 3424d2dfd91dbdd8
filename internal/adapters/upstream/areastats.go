package upstream

import (
	"context"
	"fmt"
	"strings"

	"propvalue/internal/domain"
)

// AreaStatsClient implements domain.AreaStats against the statistics gateway.
// Every endpoint answers {"status": <flag>, "data": {...}}.
type AreaStatsClient struct{ *Client }

func NewAreaStats(base, key string, rps int) (*AreaStatsClient, error) {
	c, err := New("area_stats", base, key, rps)
	if err != nil {
		return nil, err
	}
	return &AreaStatsClient{c}, nil
}

type envelope struct {
	Status  any            `json:"status"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
}

func (e envelope) ok() bool {
	switch s := e.Status.(type) {
	case bool:
		return s
	case float64:
		return s >= 200 && s < 300
	case string:
		switch strings.ToLower(s) {
		case "ok", "success", "true", "found":
			return true
		}
	}
	return false
}

func (a *AreaStatsClient) lookup(ctx context.Context, endpoint, postcode string) (map[string]any, error) {
	paths := []string{
		fmt.Sprintf("/v2/%s/%s", endpoint, escape(postcode)),
		fmt.Sprintf("/%s?postcode=%s", endpoint, query(postcode)),
	}
	var env envelope
	if err := a.getFirst(ctx, endpoint, paths, &env); err != nil {
		return nil, err
	}
	if !env.ok() || len(env.Data) == 0 {
		if env.Message != "" {
			return nil, fmt.Errorf("%s: %w: %s", endpoint, domain.ErrNoData, env.Message)
		}
		return nil, fmt.Errorf("%s: %w", endpoint, domain.ErrNoData)
	}
	return env.Data, nil
}

func (a *AreaStatsClient) PropertyDetails(ctx context.Context, postcode string) (map[string]any, error) {
	return a.lookup(ctx, "property-details", postcode)
}

func (a *AreaStatsClient) EPC(ctx context.Context, postcode string) (map[string]any, error) {
	return a.lookup(ctx, "epc", postcode)
}

func (a *AreaStatsClient) Crime(ctx context.Context, postcode string) (map[string]any, error) {
	return a.lookup(ctx, "crime", postcode)
}

func (a *AreaStatsClient) Article4(ctx context.Context, postcode string) (map[string]any, error) {
	return a.lookup(ctx, "article4", postcode)
}

func (a *AreaStatsClient) BRMALHA(ctx context.Context, postcode string) (map[string]any, error) {
	return a.lookup(ctx, "brma-lha", postcode)
}

func (a *AreaStatsClient) Demographics(ctx context.Context, postcode string) (map[string]any, error) {
	return a.lookup(ctx, "demographics", postcode)
}
