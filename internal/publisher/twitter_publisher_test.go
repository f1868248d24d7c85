package publisher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marqetly/marqetly/pkg/oauth1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCredentials struct {
	creds   oauth1.Credentials
	missing []string
	err     error
}

func (s *stubCredentials) TwitterCredentials(context.Context) (oauth1.Credentials, []string, error) {
	return s.creds, s.missing, s.err
}

var testCreds = oauth1.Credentials{
	ConsumerKey:    "ck",
	ConsumerSecret: "cs",
	AccessToken:    "at",
	AccessSecret:   "as",
}

func TestTwitterPublishSuccess(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/2/tweets", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1234567890","text":"hello"}}`))
	}))
	defer server.Close()

	p := NewTwitterPublisher(server.URL, &stubCredentials{creds: testCreds})
	outcome := p.Publish(context.Background(), "hello")

	require.True(t, outcome.Success)
	assert.Equal(t, "1234567890", outcome.ExternalID)
	assert.Equal(t, "https://twitter.com/i/web/status/1234567890", outcome.ExternalURL)
	assert.Contains(t, outcome.RawResponse, "1234567890")
	assert.Contains(t, gotAuth, "OAuth ")
	assert.Contains(t, gotAuth, `oauth_consumer_key="ck"`)
	assert.Contains(t, gotAuth, "oauth_signature=")
}

func TestTwitterPublishHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"Forbidden"}`))
	}))
	defer server.Close()

	p := NewTwitterPublisher(server.URL, &stubCredentials{creds: testCreds})
	outcome := p.Publish(context.Background(), "hello")

	require.False(t, outcome.Success)
	assert.True(t, outcome.Retryable)
	assert.Contains(t, outcome.ErrorMessage, "403")
	assert.Contains(t, outcome.ErrorMessage, "Forbidden")
	assert.Contains(t, outcome.RawResponse, "Forbidden")
}

func TestTwitterPublishMissingCredentials(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	p := NewTwitterPublisher(server.URL, &stubCredentials{missing: []string{"twitter_api_key", "twitter_api_secret"}})
	outcome := p.Publish(context.Background(), "hello")

	require.False(t, outcome.Success)
	assert.False(t, outcome.Retryable)
	assert.Contains(t, outcome.ErrorMessage, "missing credentials")
	assert.Contains(t, outcome.ErrorMessage, "twitter_api_key")
	assert.Zero(t, calls, "no HTTP call should be attempted without credentials")
}

func TestTwitterPublishCredentialLookupError(t *testing.T) {
	p := NewTwitterPublisher("http://127.0.0.1:0", &stubCredentials{err: errors.New("db down")})
	outcome := p.Publish(context.Background(), "hello")

	require.False(t, outcome.Success)
	assert.True(t, outcome.Retryable)
	assert.Contains(t, outcome.ErrorMessage, "db down")
}

func TestTwitterPublishUnparsableResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer server.Close()

	p := NewTwitterPublisher(server.URL, &stubCredentials{creds: testCreds})
	outcome := p.Publish(context.Background(), "hello")

	require.False(t, outcome.Success)
	assert.False(t, outcome.Retryable)
	assert.Contains(t, outcome.ErrorMessage, "could not parse tweet id")
}
