package upstream

import (
	"context"
	"fmt"
)

// FeedClient pulls raw listing records from the property feed provider.
type FeedClient struct{ *Client }

func NewFeed(base, key string, rps int) (*FeedClient, error) {
	c, err := New("feed", base, key, rps)
	if err != nil {
		return nil, err
	}
	return &FeedClient{c}, nil
}

// FetchListings returns one page of raw records. Providers wrap the page in
// {"listings":[...]} or {"data":[...]}, or send a bare array.
func (f *FeedClient) FetchListings(ctx context.Context, page int) ([]map[string]any, error) {
	paths := []string{
		fmt.Sprintf("/listings?page=%d", page), // preferred
		fmt.Sprintf("/feed/%d", page),          // legacy
	}
	var out any
	if err := f.getFirst(ctx, "listings", paths, &out); err != nil {
		return nil, err
	}
	return recordsOf(out), nil
}

func recordsOf(v any) []map[string]any {
	var arr []any
	switch t := v.(type) {
	case []any:
		arr = t
	case map[string]any:
		for _, k := range []string{"listings", "data", "properties", "results"} {
			if a, ok := t[k].([]any); ok {
				arr = a
				break
			}
		}
	}
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
