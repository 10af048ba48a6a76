package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loctrack/agent/internal/apperr"
)

// fakeDoer is a Doer test double: it returns queued responses/errors in
// order and records every request it was given.
type fakeDoer struct {
	requests  []*http.Request
	responses []*http.Response
	errs      []error
	call      int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	i := f.call
	f.call++
	var resp *http.Response
	var err error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestGet_DecodesSuccessResponse(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResponse(200, `{"since":42}`)}}
	c := New("https://api.example.com", doer, func() string { return "tok" })

	var out struct{ Since int64 }
	err := c.Get(context.Background(), "/api/v8/me", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.Since)

	require.Len(t, doer.requests, 1)
	user, pass, ok := doer.requests[0].BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "tok", user)
	assert.Equal(t, "api_token", pass)
}

func TestGet_401MapsToUnauthorized(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResponse(401, `{}`)}}
	c := New("https://api.example.com", doer, func() string { return "tok" })

	err := c.Get(context.Background(), "/api/v8/me", nil)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Len(t, doer.requests, 1) // not retried
}

func TestGet_ValidationErrorNotRetried(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResponse(422, `{}`)}}
	c := New("https://api.example.com", doer, func() string { return "tok" })

	err := c.Get(context.Background(), "/api/v8/time_entries", nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Len(t, doer.requests, 1)
}

func TestGet_TransportErrorIsNotRetriedByDefaultBackoff(t *testing.T) {
	// a non-networking transport error (e.g. a malformed URL) should not
	// be retried: it is permanent.
	doer := &fakeDoer{errs: []error{errors.New("boom: not a networking message")}}
	c := New("https://api.example.com", doer, func() string { return "tok" })

	err := c.Get(context.Background(), "/api/v8/me", nil)
	require.Error(t, err)
	assert.Len(t, doer.requests, 1)
}

func TestGet_TransientNetworkErrorIsNotRetriedInCall(t *testing.T) {
	// do() makes exactly one attempt even for a transient-classified
	// failure; retry/backoff for these lives at the dispatcher's worker
	// tick, not inside the transport layer.
	doer := &fakeDoer{errs: []error{errors.New("Connection refused")}}
	c := New("https://api.example.com", doer, func() string { return "tok" })

	err := c.Get(context.Background(), "/api/v8/me", nil)
	require.ErrorIs(t, err, apperr.ErrTransientNetwork)
	assert.Len(t, doer.requests, 1)
}

func TestPost_SendsEncodedBody(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResponse(200, `{}`)}}
	c := New("https://api.example.com", doer, func() string { return "tok" })

	err := c.Post(context.Background(), "/api/v8/time_entries/batch_updates", []string{"a", "b"}, nil)
	require.NoError(t, err)

	require.Len(t, doer.requests, 1)
	body, err := io.ReadAll(doer.requests[0].Body)
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(body))
}

func TestPostBasicAuth_UsesExplicitCredentials(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResponse(200, `{"data":{"api_token":"abc","id":7}}`)}}
	c := New("https://api.example.com", doer, func() string { return "" })

	var out struct {
		Data struct {
			APIToken string `json:"api_token"`
			ID       int64  `json:"id"`
		} `json:"data"`
	}
	err := c.PostBasicAuth(context.Background(), "/api/v8/sessions", "user@example.com", "secret", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.Data.APIToken)
	assert.Equal(t, int64(7), out.Data.ID)

	user, pass, ok := doer.requests[0].BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "user@example.com", user)
	assert.Equal(t, "secret", pass)
}

func TestPostBasicAuth_InvalidCredentialsMapsToUnauthorized(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResponse(403, `{}`)}}
	c := New("https://api.example.com", doer, func() string { return "" })

	err := c.PostBasicAuth(context.Background(), "/api/v8/sessions", "user@example.com", "wrong", nil, nil)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}
