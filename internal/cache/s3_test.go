package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectClient struct {
	objects map[string][]byte
	putErr  error
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{objects: make(map[string][]byte)}
}

func (f *fakeObjectClient) Put(_ context.Context, bucket, key string, body io.Reader, _ int64) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeObjectClient) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	client := newFakeObjectClient()
	store, err := NewS3StoreWithClient("artifacts", "askdb", client)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "schema.json", []byte(`{"name":"football"}`)))

	// The configured prefix is joined onto the object key.
	assert.Contains(t, client.objects, "artifacts/askdb/schema.json")

	data, err := store.Load(ctx, "schema.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"football"}`, string(data))
}

func TestS3StoreNoPrefix(t *testing.T) {
	client := newFakeObjectClient()
	store, err := NewS3StoreWithClient("artifacts", "", client)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), "schema.json", []byte("{}")))
	assert.Contains(t, client.objects, "artifacts/schema.json")
}

func TestS3StoreMissingKey(t *testing.T) {
	store, err := NewS3StoreWithClient("artifacts", "", newFakeObjectClient())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "absent.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StorePutError(t *testing.T) {
	client := newFakeObjectClient()
	client.putErr = fmt.Errorf("access denied")
	store, err := NewS3StoreWithClient("artifacts", "", client)
	require.NoError(t, err)

	err = store.Save(context.Background(), "schema.json", []byte("{}"))
	assert.ErrorContains(t, err, "failed to save cache object")
}

func TestNewS3StoreWithClientValidation(t *testing.T) {
	_, err := NewS3StoreWithClient("", "prefix", newFakeObjectClient())
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3StoreWithClient("artifacts", "prefix", nil)
	assert.ErrorContains(t, err, "client is required")
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		expectErr  bool
	}{
		{
			name:       "bare host keeps flag",
			raw:        "minio.local:9000",
			useSSL:     false,
			wantHost:   "minio.local:9000",
			wantSecure: false,
		},
		{
			name:       "https url forces tls",
			raw:        "https://s3.example.com",
			useSSL:     false,
			wantHost:   "s3.example.com",
			wantSecure: true,
		},
		{
			name:       "http url keeps flag",
			raw:        "http://minio.local:9000",
			useSSL:     true,
			wantHost:   "minio.local:9000",
			wantSecure: true,
		},
		{
			name:      "empty endpoint",
			raw:       "  ",
			expectErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, secure, err := parseEndpoint(tt.raw, tt.useSSL)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, secure)
		})
	}
}
