package pkgstore

import (
	"context"
	"fmt"
	"time"
)

// MockClient is a test double for the Client interface.
type MockClient struct {
	Existing    map[string]bool // key → present
	ExistsErr   error
	UploadErr   error
	IdentityErr error

	// Track calls
	Uploaded map[string]string // key → local path
}

// NewMockClient creates an empty bucket.
func NewMockClient() *MockClient {
	return &MockClient{
		Existing: make(map[string]bool),
		Uploaded: make(map[string]string),
	}
}

func (m *MockClient) Identity(context.Context) (string, error) {
	if m.IdentityErr != nil {
		return "", m.IdentityErr
	}
	return "arn:aws:iam::123456789012:user/deployer", nil
}

func (m *MockClient) ObjectExists(_ context.Context, _, key string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return m.Existing[key], nil
}

func (m *MockClient) UploadFile(_ context.Context, _, key, localPath string) error {
	if m.UploadErr != nil {
		return m.UploadErr
	}
	m.Uploaded[key] = localPath
	m.Existing[key] = true
	return nil
}

func (m *MockClient) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s?ttl=%d", bucket, key, int(ttl.Seconds())), nil
}
