package caps

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/rabe42/state-machines/chart"
)

// NewJar makes a cookie jar backed by the public suffix list.
func NewJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return jar, nil
}

// HTTPRequest describes one request made by the http action.
type HTTPRequest struct {
	Method            string      `json:"method,omitempty"`
	URL               string      `json:"url"`
	Body              string      `json:"body,omitempty"`
	Headers           http.Header `json:"headers,omitempty"`
	ResponseTimeoutMS int         `json:"timeout,omitempty"`

	// Jar, if given, supplies cookies for the request and is
	// updated from the response.
	Jar http.CookieJar `json:"-"`

	// TestResponse, if given, is returned instead of making a real
	// request.
	TestResponse *HTTPResponse `json:"-"`
}

// HTTPResponse is what came back.
type HTTPResponse struct {
	StatusCode int         `json:"statusCode"`
	Status     string      `json:"status"`
	Headers    http.Header `json:"headers,omitempty"`
	Body       string      `json:"body,omitempty"`
}

// Do makes the request synchronously.
func (r *HTTPRequest) Do(ctx context.Context) (*HTTPResponse, error) {
	if r.TestResponse != nil {
		return r.TestResponse, nil
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, err
	}

	if 0 < r.ResponseTimeoutMS {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.ResponseTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	req := &http.Request{
		Method: r.Method,
		URL:    u,
		Header: r.Headers,
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if r.Body != "" {
		req.Body = io.NopCloser(bytes.NewReader([]byte(r.Body)))
	}

	// http.Request doesn't itself support cookie jars; http.Client
	// does, but a Client also caches TCP connections, so we don't
	// want to create one per request.  The jar is applied by hand
	// instead.
	if r.Jar != nil {
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		for _, cookie := range r.Jar.Cookies(u) {
			req.AddCookie(cookie)
		}
	}

	req = req.WithContext(ctx)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if r.Jar != nil {
		r.Jar.SetCookies(u, resp.Cookies())
	}

	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Body:       string(body),
	}, nil
}

// httpAction makes the prelude's http action.  One cookie jar is
// shared across calls, so a chart can carry a session from one
// request to the next.
func httpAction() ActionFunc {
	jar, err := NewJar()
	if err != nil {
		log.WithError(err).Warn("http action runs without a cookie jar")
	}
	return func(ctx context.Context, params []*chart.Parameter) error {
		req := &HTTPRequest{Jar: jar}
		for i, p := range params {
			v := p.Value
			switch i {
			case 0:
				req.URL = v.Str
			case 1:
				req.Method = v.Str
			case 2:
				req.Body = v.Str
			case 3:
				if w, err := v.Coerce(chart.TypeInteger); err == nil {
					req.ResponseTimeoutMS = int(w.Int)
				}
			}
		}
		resp, err := req.Do(ctx)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"url":    req.URL,
			"status": resp.Status,
		}).Debug("http action")
		return nil
	}
}
