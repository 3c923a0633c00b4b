package platform

import (
	"context"
	"fmt"
	"net/url"
)

// recordClient is the HTTP implementation of RecordStore. The platform owns
// ordering, range-query semantics, and the atomicity of field operations;
// this client only shapes requests.
type recordClient struct {
	client *Client
}

// NewRecordClient creates a record service client.
func NewRecordClient(c *Client) RecordStore {
	return &recordClient{client: c}
}

func (s *recordClient) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	var result struct {
		Key string `json:"key"`
	}
	err := s.client.post(ctx, "/v1/records/"+collection, map[string]any{
		"fields": fields,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Key, nil
}

func (s *recordClient) Put(ctx context.Context, collection, key string, fields map[string]any) error {
	return s.client.put(ctx, "/v1/records/"+collection+"/"+key, map[string]any{
		"fields": fields,
	}, nil)
}

func (s *recordClient) Get(ctx context.Context, collection, key string) (*Record, error) {
	var record Record
	err := s.client.get(ctx, "/v1/records/"+collection+"/"+key, &record)
	if err != nil {
		if pErr, ok := AsError(err); ok && pErr.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *recordClient) Update(ctx context.Context, collection, key string, ops []FieldOp) error {
	return s.client.patch(ctx, "/v1/records/"+collection+"/"+key, map[string]any{
		"ops": ops,
	}, nil)
}

func (s *recordClient) List(ctx context.Context, collection, orderField string, desc bool, limit int) ([]Record, error) {
	order := "asc"
	if desc {
		order = "desc"
	}
	path := fmt.Sprintf("/v1/records/%s?order_by=%s&order=%s&limit=%d",
		collection, url.QueryEscape(orderField), order, limit)

	var result struct {
		Records []Record `json:"records"`
	}
	if err := s.client.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Records, nil
}

func (s *recordClient) PrefixQuery(ctx context.Context, collection, field, prefix string, limit int) ([]Record, error) {
	path := fmt.Sprintf("/v1/records/%s?field=%s&prefix=%s&limit=%d",
		collection, url.QueryEscape(field), url.QueryEscape(prefix), limit)

	var result struct {
		Records []Record `json:"records"`
	}
	if err := s.client.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Records, nil
}
