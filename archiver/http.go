package archiver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// UserAgents is the pool a request's User-Agent is drawn from.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36",
}

// maxBodyBytes caps how much of a response is read for scraping.
const maxBodyBytes = 10 << 20

// RandomUserAgent picks an entry of UserAgents.
func RandomUserAgent() string {
	return UserAgents[rand.IntN(len(UserAgents))]
}

// Delay sleeps for a random duration in [lo, hi].
type Delay func(ctx context.Context, lo, hi time.Duration) error

// RandomDelay builds a Delay on top of sleep.
func RandomDelay(sleep Sleeper) Delay {
	return func(ctx context.Context, lo, hi time.Duration) error {
		d := lo
		if hi > lo {
			d += rand.N(hi - lo + 1)
		}
		return sleep(ctx, d)
	}
}

// NoDelay skips politeness delays entirely.
func NoDelay(ctx context.Context, _, _ time.Duration) error {
	return ctx.Err()
}

func newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for '%s': %w", url, err)
	}
	req.Header.Set("User-Agent", RandomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	return req, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// discard drains and closes a response body so the connection can be reused.
func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()
}

// anchorHrefs returns the href of every <a> element in document order.
func anchorHrefs(body []byte) []string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var hrefs []string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return hrefs
}

// firstHref returns the first href satisfying match.
func firstHref(hrefs []string, match func(string) bool) (string, bool) {
	for _, href := range hrefs {
		if match(href) {
			return href, true
		}
	}
	return "", false
}

func trimSlash(s string) string {
	return strings.TrimRight(s, "/")
}
