package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beaconwatch/beacon/internal/safenet"
)

const (
	maxBodyRead  = 1 << 20 // 1MB
	maxRedirects = 5
)

var validMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true,
	http.MethodPut: true, http.MethodPatch: true, http.MethodDelete: true,
	http.MethodOptions: true,
}

// HTTPCheck describes one HTTP probe. AllowPrivate disables the
// private-network guard; it exists for local development and tests.
type HTTPCheck struct {
	URL              string
	Method           string
	Headers          map[string]string
	Body             string
	TimeoutMs        int
	ExpectedStatus   []int
	Keyword          string
	ForbiddenKeyword string
	AllowPrivate     bool
}

// Run executes the probe. The context bounds the whole attempt in
// addition to the configured timeout.
func (c *HTTPCheck) Run(ctx context.Context) Outcome {
	method := c.Method
	if method == "" {
		method = http.MethodGet
	}
	if !validMethods[strings.ToUpper(method)] {
		return unknown(fmt.Sprintf("invalid method %q", c.Method))
	}
	method = strings.ToUpper(method)

	u, err := url.Parse(c.URL)
	if err != nil {
		return unknown(fmt.Sprintf("invalid url: %v", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return unknown(fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if !c.AllowPrivate {
		if err := safenet.ValidateHostPort(u.Hostname(), portOf(u)); err != nil {
			return unknown(err.Error())
		}
	}

	var bodyReader io.Reader
	if c.Body != "" {
		bodyReader = strings.NewReader(c.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL, bodyReader)
	if err != nil {
		return unknown(fmt.Sprintf("invalid request: %v", err))
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	timeout := time.Duration(c.TimeoutMs) * time.Millisecond
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: timeout,
				Control: safenet.MaybeDialControl(c.AllowPrivate),
			}).DialContext,
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if method == http.MethodHead || len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return down(classifyNetErr(err))
	}
	defer resp.Body.Close()
	elapsed := time.Since(start).Milliseconds()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))

	out := Outcome{
		Status:     StatusUp,
		LatencyMs:  &elapsed,
		HTTPStatus: &resp.StatusCode,
		Attempts:   1,
	}

	if !c.statusAccepted(resp.StatusCode) {
		out.Status = StatusDown
		out.Error = fmt.Sprintf("status %d", resp.StatusCode)
		return out
	}
	body := string(bodyBytes)
	if c.Keyword != "" && !strings.Contains(body, c.Keyword) {
		out.Status = StatusDown
		out.Error = "missing keyword"
		return out
	}
	if c.ForbiddenKeyword != "" && strings.Contains(body, c.ForbiddenKeyword) {
		out.Status = StatusDown
		out.Error = "forbidden keyword present"
		return out
	}
	return out
}

// statusAccepted matches against the configured literal set, or any 2xx
// when no expectation is configured.
func (c *HTTPCheck) statusAccepted(code int) bool {
	if len(c.ExpectedStatus) == 0 {
		return code >= 200 && code < 300
	}
	for _, want := range c.ExpectedStatus {
		if code == want {
			return true
		}
	}
	return false
}

func portOf(u *url.URL) int {
	if p := u.Port(); p != "" {
		var port int
		fmt.Sscanf(p, "%d", &port)
		return port
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}
