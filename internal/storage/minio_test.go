package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		host     string
		scheme   string
		wantErr  bool
	}{
		{endpoint: "localhost:9000", host: "localhost:9000"},
		{endpoint: "http://localhost:9000", host: "localhost:9000", scheme: "http"},
		{endpoint: "https://s3.eu-west-1.amazonaws.com/", host: "s3.eu-west-1.amazonaws.com", scheme: "https"},
		{endpoint: "https://minio.local/bucket", wantErr: true},
		{endpoint: "minio.local/bucket", wantErr: true},
		{endpoint: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, scheme, err := cleanEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.scheme, scheme)
		})
	}
}

func TestNewMinIOClient(t *testing.T) {
	client, err := NewMinIOClient(Config{
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		PathStyle: true,
	})

	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewMinIOClient_InvalidEndpoint(t *testing.T) {
	_, err := NewMinIOClient(Config{Endpoint: "https://minio.local/some/path"})

	assert.Error(t, err)
}
