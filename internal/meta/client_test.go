package meta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steviee/go-mcl/internal/retry"
)

func TestClient_GetVersionManifest_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeMetaJSON(w, map[string]interface{}{
			"latest":   map[string]string{"release": "1.20.4"},
			"versions": []map[string]string{{"id": "1.20.4", "url": "https://example.com/v.json"}},
		})
	}))
	defer server.Close()

	client := NewClient(&Config{
		ManifestURL: server.URL,
		Retry:       retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
	})

	manifest, err := client.GetVersionManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.20.4", manifest.Latest.Release)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_GetVersionManifest_TerminalStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(&Config{
		ManifestURL: server.URL,
		Retry:       retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
	})

	_, err := client.GetVersionManifest(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	// A 404 never retries.
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_GetVersionDescriptor_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMetaJSON(w, map[string]interface{}{"mainClass": "Main"})
	}))
	defer server.Close()

	client := NewClient(&Config{
		Retry: retry.Policy{MaxAttempts: 1, Delay: time.Millisecond},
	})

	_, _, err := client.GetVersionDescriptor(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrDescriptorInvalid)
}

func TestClient_SendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		writeMetaJSON(w, map[string]interface{}{"latest": map[string]string{}, "versions": []string{}})
	}))
	defer server.Close()

	client := NewClient(&Config{
		ManifestURL: server.URL,
		Retry:       retry.Policy{MaxAttempts: 1, Delay: time.Millisecond},
	})

	_, err := client.GetVersionManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UserAgent, gotUA)
}
