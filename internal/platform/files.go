package platform

import (
	"context"
	"io"
)

// fileClient is the HTTP implementation of FileStore.
type fileClient struct {
	client *Client
}

// NewFileClient creates a file service client.
func NewFileClient(c *Client) FileStore {
	return &fileClient{client: c}
}

func (s *fileClient) Upload(ctx context.Context, path, contentType string, body io.Reader) (*FileRef, error) {
	var ref FileRef
	if err := s.client.doUpload(ctx, "/v1/files/"+path, contentType, body, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}
