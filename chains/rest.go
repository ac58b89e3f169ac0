package chains

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	chainerrors "github.com/chainwatch/chainwatch/errors"
)

// RESTClient issues GET requests against a cosmos-sdk REST (LCD) endpoint.
type RESTClient struct {
	chain   string
	baseURL string
	client  *http.Client
	retry   *chainerrors.RetryConfig
}

func NewRESTClient(chain, baseURL string, client *http.Client) *RESTClient {
	retry := chainerrors.DefaultRetryConfig()
	retry.InitialDelay = 500 * time.Millisecond
	retry.MaxDelay = 5 * time.Second

	return &RESTClient{
		chain:   chain,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		retry:   retry,
	}
}

// GetJSON decodes the JSON body of GET <base><path>?<query> into out.
// Transport failures, 429 and 5xx responses are retried.
func (r *RESTClient) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := r.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return chainerrors.RetryWithConfig(ctx, func() error {
		return r.getOnce(ctx, endpoint, out)
	}, r.retry)
}

func (r *RESTClient) getOnce(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return chainerrors.NewValidationError(r.chain, "invalid request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return chainerrors.NewNetworkError(r.chain, "GET "+endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return chainerrors.FromHTTPStatus(r.chain, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return chainerrors.NewValidationError(r.chain, "decode "+endpoint, err)
	}
	return nil
}
