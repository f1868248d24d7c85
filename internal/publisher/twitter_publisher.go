package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/marqetly/marqetly/pkg/oauth1"
)

const publishTimeout = 15 * time.Second

// CredentialProvider resolves the stored Twitter credentials. It returns the
// names of any missing secrets instead of partial credentials.
type CredentialProvider interface {
	TwitterCredentials(ctx context.Context) (oauth1.Credentials, []string, error)
}

type TwitterPublisher struct {
	creds   CredentialProvider
	signer  *oauth1.Signer
	client  *http.Client
	baseURL string
}

func NewTwitterPublisher(baseURL string, creds CredentialProvider) *TwitterPublisher {
	return &TwitterPublisher{
		creds:   creds,
		signer:  oauth1.NewSigner(),
		client:  &http.Client{Timeout: publishTimeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (p *TwitterPublisher) Publish(ctx context.Context, content string) Outcome {
	creds, missing, err := p.creds.TwitterCredentials(ctx)
	if err != nil {
		slog.Info(err.Error())
		return Failure(true, "reading twitter credentials: %v", err)
	}
	if len(missing) > 0 {
		return Failure(false, "missing credentials: %s", strings.Join(missing, ", "))
	}

	endpoint := p.baseURL + "/2/tweets"
	header, err := p.signer.AuthorizationHeader(http.MethodPost, endpoint, map[string]string{"text": content}, creds)
	if err != nil {
		slog.Info(err.Error())
		return Failure(false, "signing request: %v", err)
	}

	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return Failure(false, "encoding request body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Failure(false, "building request: %v", err)
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return Failure(true, "twitter request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Info(err.Error())
		return Failure(true, "reading twitter response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome := Failure(true, "twitter api returned status %d: %s", resp.StatusCode, string(respBody))
		outcome.RawResponse = string(respBody)
		return outcome
	}

	var tweet struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &tweet); err != nil || tweet.Data.ID == "" {
		outcome := Failure(false, "could not parse tweet id from response: %s", string(respBody))
		outcome.RawResponse = string(respBody)
		return outcome
	}

	return Outcome{
		Success:     true,
		ExternalID:  tweet.Data.ID,
		ExternalURL: fmt.Sprintf("https://twitter.com/i/web/status/%s", tweet.Data.ID),
		RawResponse: string(respBody),
	}
}
