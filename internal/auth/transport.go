package auth

import (
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Transport attaches the access token to each request and, on a 401,
// refreshes once and re-issues the request once.
type Transport struct {
	Base    http.RoundTripper
	manager *Manager
}

// attempt tracks the retry budget of a single request invocation.
type attempt struct {
	orig    *http.Request
	retries int
}

func (a *attempt) replayable() bool {
	return a.orig.Body == nil || a.orig.Body == http.NoBody || a.orig.GetBody != nil
}

// build clones the original request for the current try and authorizes it.
func (a *attempt) build(tok *oauth2.Token) (*http.Request, error) {
	req := a.orig.Clone(a.orig.Context())
	if a.retries > 0 && a.orig.GetBody != nil {
		body, err := a.orig.GetBody()
		if err != nil {
			return nil, err
		}
		req.Body = body
	}
	if tok != nil {
		tok.SetAuthHeader(req)
	}
	return req, nil
}

// closeBody closes the caller's body on paths that never reach the base
// transport, as the RoundTripper contract requires.
func (a *attempt) closeBody() {
	if a.retries == 0 && a.orig.Body != nil {
		a.orig.Body.Close()
	}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	a := &attempt{orig: req}
	for {
		tok, err := t.manager.current()
		if err != nil {
			a.closeBody()
			return nil, err
		}

		out, err := a.build(tok)
		if err != nil {
			a.closeBody()
			return nil, err
		}

		resp, err := t.base().RoundTrip(out)
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			return resp, err
		}
		if tok == nil || a.retries > 0 || !a.replayable() {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		a.retries++
		t.manager.log.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("unauthorized, refreshing token")
		if _, err := t.manager.refresh(req.Context(), tok); err != nil {
			return nil, err
		}
	}
}
