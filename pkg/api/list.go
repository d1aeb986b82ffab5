package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Record is a loosely typed REST resource
type Record map[string]interface{}

// ListOptions are the query parameters every list endpoint understands
type ListOptions struct {
	Search        string
	Sort          string
	SortAscending *bool
	Limit         int
	Offset        int
}

func (o ListOptions) Values() url.Values {
	v := url.Values{}
	if o.Search != "" {
		v.Set("search", o.Search)
	}
	if o.Sort != "" {
		v.Set("sort_field", o.Sort)
	}
	if o.SortAscending != nil {
		v.Set("sort_ascending", strconv.FormatBool(*o.SortAscending))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		v.Set("offset", strconv.Itoa(o.Offset))
	}
	return v
}

// List fetches path and unwraps the common envelopes around collections
func (c *Client) List(ctx context.Context, path string, opts ListOptions) ([]Record, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, opts.Values(), &raw); err != nil {
		return nil, err
	}
	return DecodeList(raw)
}

// DecodeList accepts a bare array or an object wrapping one in items, data
// or results
func DecodeList(raw json.RawMessage) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected list response: %w", err)
	}

	for _, key := range []string{"items", "data", "results"} {
		inner, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &records); err != nil {
			return nil, fmt.Errorf("unexpected %q in list response: %w", key, err)
		}
		return records, nil
	}

	return nil, fmt.Errorf("list response has no items, data or results")
}
