package s3

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientValidates(t *testing.T) {
	_, err := NewClient(Config{Bucket: "b"}, nil)
	require.ErrorContains(t, err, "endpoint")
	_, err = NewClient(Config{Endpoint: "http://localhost:9000"}, nil)
	require.ErrorContains(t, err, "bucket")
}

func TestObjectURLUsesPublicBase(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "http://localhost:9000", Bucket: "site", PublicBaseURL: "https://cdn.example.com/"}, nil)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/site/availability/alpen.json", c.ObjectURL("/availability/alpen.json"))

	c, err = NewClient(Config{Endpoint: "http://localhost:9000", Bucket: "site"}, nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000/site/a.json", c.ObjectURL("a.json"))
}

func TestPutJSONRequiresKey(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "localhost:9000", Bucket: "site"}, nil)
	require.NoError(t, err)
	_, err = c.PutJSON(context.Background(), " / ", map[string]string{})
	require.ErrorContains(t, err, "key")
}

func TestPublicReadPolicyIsValidJSON(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(PublicReadPolicy("site")), &doc))
	require.Contains(t, PublicReadPolicy("site"), "arn:aws:s3:::site/*")
}
