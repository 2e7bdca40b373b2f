package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_Deterministic(t *testing.T) {
	content := []byte("tariff schedule rev 4")
	assert.Equal(t, Digest(content), Digest(content))
	assert.Len(t, Digest(content), 64, "hex-encoded SHA-256")
	assert.NotEqual(t, Digest(content), Digest([]byte("tariff schedule rev 5")))
}

func TestDigest_NoNormalization(t *testing.T) {
	// Whitespace and encoding differences are real differences.
	assert.NotEqual(t, Digest([]byte("a b")), Digest([]byte("a  b")))
	assert.NotEqual(t, Digest([]byte("a\n")), Digest([]byte("a\r\n")))
}

func TestFingerprint_CapturesRemoteMetadata(t *testing.T) {
	body := []byte("%PDF-1.4 commercial rates")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Tue, 10 Jun 2025 08:30:00 GMT")
		w.Header().Set("ETag", `"v2"`)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	fp, err := testFetcher().Fingerprint(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, Digest(body), fp.Digest)
	assert.Equal(t, `"v2"`, fp.ETag)
	assert.Equal(t, int64(len(body)), fp.Size)
	require.NotNil(t, fp.RemoteModified)
	assert.Equal(t, 2025, fp.RemoteModified.Year())
}

func TestFingerprint_MissingMetadataIsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("no headers"))
	}))
	defer server.Close()

	fp, err := testFetcher().Fingerprint(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Nil(t, fp.RemoteModified)
	assert.Empty(t, fp.ETag)
}

func TestFingerprint_PropagatesFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := testFetcher().Fingerprint(context.Background(), server.URL)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
}
