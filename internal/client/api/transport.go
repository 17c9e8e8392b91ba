package api

import (
	"context"
	"io"
	"net/http"

	"github.com/quipflip/quipflip-go/internal/logging"
)

// HeaderSkipAuth marks a request as exempt from credential attachment and
// the 401 replay flow. The auth endpoints themselves set it to avoid a
// circular dependency on the token they are issuing. The header is stripped
// before the request leaves the process.
const HeaderSkipAuth = "X-Skip-Auth"

// tokenSession is the slice of the session manager the transport depends on.
type tokenSession interface {
	EnsureAccessToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
	Username() string
	Clear(ctx context.Context) error
}

// authTransport attaches the bearer token to outgoing requests and, on a
// 401, refreshes the credential and replays the original request exactly
// once. A second 401 after the replay clears the session.
type authTransport struct {
	base    http.RoundTripper
	session tokenSession
	log     logging.Logger
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if req.Header.Get(HeaderSkipAuth) != "" {
		bare := req.Clone(ctx)
		bare.Header.Del(HeaderSkipAuth)
		return t.base.RoundTrip(bare)
	}

	attempt := req.Clone(ctx)
	token, err := t.session.EnsureAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		attempt.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(attempt)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// Only replay when there is evidence of a prior login; first-time
	// visitors just get the 401 back.
	if t.session.Username() == "" {
		return resp, nil
	}

	fresh, err := t.session.ForceRefresh(ctx)
	if err != nil {
		// The manager has already cleared the session; surface the original 401.
		return resp, nil
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+fresh)

	drain(resp)

	resp2, err := t.base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	if resp2.StatusCode == http.StatusUnauthorized {
		// Replayed once and still rejected: terminal auth failure.
		if cerr := t.session.Clear(ctx); cerr != nil {
			t.log.Warn(ctx, "failed to clear session after terminal 401", "error", cerr)
		}
	}
	return resp2, nil
}

func drain(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}
}
