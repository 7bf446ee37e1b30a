package spectrum

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// endpoint is one resolved, working vendor operation endpoint.
type endpoint struct {
	URL    string
	Action string
}

// EndpointCache maps probed URLs to working endpoints. It is injected into the
// Client rather than living as package state, and is safe for concurrent use.
type EndpointCache struct {
	mu        sync.Mutex
	endpoints map[string]*endpoint
}

// NewEndpointCache creates an empty endpoint cache.
func NewEndpointCache() *EndpointCache {
	return &EndpointCache{endpoints: make(map[string]*endpoint)}
}

func (c *EndpointCache) get(url string) (*endpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep, ok := c.endpoints[url]
	return ep, ok
}

func (c *EndpointCache) put(url string, ep *endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints[url] = ep
}

// Client talks to the Spectrum web services. One shared keep-alive HTTP
// connection pool backs all calls; resolved endpoints are parsed once and
// reused for the life of the process.
type Client struct {
	baseURL string
	authID  string
	http    *http.Client
	cache   *EndpointCache
	log     *logrus.Logger

	// resolveMu serializes endpoint probing so concurrent callers do not race
	// to probe the same operation's WSDL redundantly.
	resolveMu sync.Mutex
}

// NewClient creates a Client for the given vendor base URL and authorization
// credential.
func NewClient(baseURL, authID string, timeout time.Duration, cache *EndpointCache, log *logrus.Logger) *Client {
	if cache == nil {
		cache = NewEndpointCache()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		authID:  authID,
		cache:   cache,
		log:     log,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// candidateURLs lists the endpoint URL variants to probe for an operation, in
// order. The vendor has shipped both the bare and the service.asmx shapes, and
// both WSDL query spellings.
func (c *Client) candidateURLs(operation string) []string {
	bases := []string{
		fmt.Sprintf("%s/%s/service.asmx", c.baseURL, operation),
		fmt.Sprintf("%s/%s.asmx", c.baseURL, operation),
	}
	urls := make([]string, 0, len(bases)*3)
	for _, b := range bases {
		urls = append(urls, b+"?WSDL", b+"?wsdl", b)
	}
	return urls
}

// resolve returns a working endpoint for the operation, probing candidate URLs
// until one serves a parseable WSDL. Successful URLs are cached exactly.
func (c *Client) resolve(ctx context.Context, operation string) (*endpoint, error) {
	candidates := c.candidateURLs(operation)

	for _, url := range candidates {
		if ep, ok := c.cache.get(url); ok {
			return ep, nil
		}
	}

	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	// Re-check under the lock: another caller may have resolved meanwhile.
	for _, url := range candidates {
		if ep, ok := c.cache.get(url); ok {
			return ep, nil
		}
	}

	var lastErr error
	for _, url := range candidates {
		ep, err := c.probe(ctx, operation, url)
		if err != nil {
			lastErr = err
			c.log.WithFields(logrus.Fields{
				"operation": operation,
				"url":       url,
			}).Debugf("endpoint probe failed: %v", err)
			continue
		}
		c.cache.put(url, ep)
		return ep, nil
	}

	return nil, &TransportError{Operation: operation, Tried: candidates, Err: lastErr}
}

// probe fetches a candidate URL and verifies it serves a WSDL, extracting the
// advertised soap address when present.
func (c *Client) probe(ctx context.Context, operation, url string) (*endpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("not a wsdl: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "definitions" {
		return nil, fmt.Errorf("not a wsdl: root %q", rootTag(root))
	}

	ep := &endpoint{
		URL:    strings.SplitN(url, "?", 2)[0],
		Action: soapAction + operation,
	}
	// Prefer the soap:address advertised inside the WSDL.
	if addr := doc.FindElement("//address"); addr != nil {
		if location := addr.SelectAttrValue("location", ""); location != "" {
			ep.URL = location
		}
	}
	return ep, nil
}

func rootTag(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Tag
}

// Call invokes a vendor operation. Every call carries a fresh correlation GUID
// and the configured authorization credential; optional filter params must be
// present as empty strings, never omitted, to match vendor expectations.
func (c *Client) Call(ctx context.Context, operation string, params map[string]string) (*CallResult, error) {
	ep, err := c.resolve(ctx, operation)
	if err != nil {
		return nil, err
	}

	merged := map[string]string{
		"Division":      "",
		"Status_Code":   "",
		"Customer_Code": "",
		"Cost_Center":   "",
	}
	for k, v := range params {
		merged[k] = v
	}
	merged["Authorization_ID"] = c.authID
	merged["GUID"] = uuid.NewString()

	body := buildEnvelope(operation, merged)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Operation: operation, Tried: []string{ep.URL}, Err: err}
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", `"`+ep.Action+`"`)

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are transient transport errors,
		// distinct from vendor faults and parse failures.
		return nil, &TransportError{Operation: operation, Tried: []string{ep.URL}, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Operation: operation, Tried: []string{ep.URL}, Err: err}
	}

	payload, err := parseEnvelope(operation, raw)
	if err != nil {
		return nil, err
	}

	return &CallResult{Body: payload, Raw: raw}, nil
}
