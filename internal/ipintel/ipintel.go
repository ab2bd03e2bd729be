// Package ipintel looks up geographic and ownership intelligence for
// attacker addresses through the ipinfo.io REST API.
package ipintel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/brute-sh/brute/internal/metrics"
	"github.com/brute-sh/brute/internal/model"
)

var log = logrus.WithField("prefix", "ipintel")

// Provider is the one operation the aggregation pipeline needs.
type Provider interface {
	Lookup(ctx context.Context, ip string) (*Details, error)
}

// Details mirrors the provider's per-IP response. Sub-objects are only
// present on paid plans, so all of them are optional.
type Details struct {
	IP       string          `json:"ip"`
	Hostname string          `json:"hostname"`
	City     string          `json:"city"`
	Region   string          `json:"region"`
	Country  string          `json:"country"`
	Loc      string          `json:"loc"`
	Org      string          `json:"org"`
	Postal   string          `json:"postal"`
	Timezone string          `json:"timezone"`
	ASN      *ASNDetails     `json:"asn"`
	Company  *CompanyDetails `json:"company"`
	Privacy  *PrivacyDetails `json:"privacy"`
	Abuse    *AbuseDetails   `json:"abuse"`
	Domains  *DomainDetails  `json:"domains"`
}

type ASNDetails struct {
	ASN    string `json:"asn"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Route  string `json:"route"`
	Type   string `json:"type"`
}

type CompanyDetails struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Type   string `json:"type"`
}

type PrivacyDetails struct {
	VPN     bool   `json:"vpn"`
	Proxy   bool   `json:"proxy"`
	Tor     bool   `json:"tor"`
	Relay   bool   `json:"relay"`
	Hosting bool   `json:"hosting"`
	Service string `json:"service"`
}

type AbuseDetails struct {
	Address string `json:"address"`
	Country string `json:"country"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Network string `json:"network"`
	Phone   string `json:"phone"`
}

type DomainDetails struct {
	IP      string   `json:"ip"`
	Total   int64    `json:"total"`
	Domains []string `json:"domains"`
}

// Fill copies the enrichment fields onto p, substituting empty defaults for
// every sub-object the provider omitted. Identity fields are left alone.
func (d *Details) Fill(p *model.ProcessedIndividual) {
	p.Hostname = d.Hostname
	p.City = d.City
	p.Region = d.Region
	p.Country = d.Country
	p.Loc = d.Loc
	p.Org = d.Org
	p.Postal = d.Postal
	p.Timezone = d.Timezone

	asn := d.ASN
	if asn == nil {
		asn = &ASNDetails{}
	}
	p.ASN = asn.ASN
	p.ASNName = asn.Name
	p.ASNDomain = asn.Domain
	p.ASNRoute = asn.Route
	p.ASNType = asn.Type

	company := d.Company
	if company == nil {
		company = &CompanyDetails{}
	}
	p.CompanyName = company.Name
	p.CompanyDomain = company.Domain
	p.CompanyType = company.Type

	privacy := d.Privacy
	if privacy == nil {
		privacy = &PrivacyDetails{}
	}
	p.VPN = privacy.VPN
	p.Proxy = privacy.Proxy
	p.Tor = privacy.Tor
	p.Relay = privacy.Relay
	p.Hosting = privacy.Hosting
	p.Service = privacy.Service

	abuse := d.Abuse
	if abuse == nil {
		abuse = &AbuseDetails{}
	}
	p.AbuseAddress = abuse.Address
	p.AbuseCountry = abuse.Country
	p.AbuseEmail = abuse.Email
	p.AbuseName = abuse.Name
	p.AbuseNetwork = abuse.Network
	p.AbusePhone = abuse.Phone

	domains := d.Domains
	if domains == nil {
		domains = &DomainDetails{}
	}
	p.DomainIP = domains.IP
	p.DomainTotal = domains.Total
	p.Domains = pq.StringArray{}
	if len(domains.Domains) > 0 {
		p.Domains = pq.StringArray(domains.Domains)
	}
}

// Client calls ipinfo.io. A process-wide mutex keeps at most one request in
// flight, and a circuit breaker sheds load when the provider keeps failing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string

	mu      sync.Mutex
	breaker *gobreaker.CircuitBreaker
}

// Option adjusts a Client. Tests point the client at a local server.
type Option func(*Client)

func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient builds a provider client authenticated by token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://ipinfo.io",
		token:      token,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ipinfo",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).
				Warn("ipinfo circuit breaker changed state")
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches intelligence for one address. Callers serialize on the
// client mutex, so at most one provider request is ever in flight.
func (c *Client) Lookup(ctx context.Context, ip string) (*Details, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics.ProviderCalls.Inc()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, ip)
	})
	if err != nil {
		metrics.ProviderFailures.Inc()
		return nil, err
	}
	return result.(*Details), nil
}

func (c *Client) fetch(ctx context.Context, ip string) (*Details, error) {
	u := fmt.Sprintf("%s/%s?token=%s", c.baseURL, url.PathEscape(ip), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build ipinfo request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call ipinfo")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("ipinfo returned status %d for %s", resp.StatusCode, ip)
	}

	var d Details
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, errors.Wrap(err, "decode ipinfo response")
	}
	return &d, nil
}
