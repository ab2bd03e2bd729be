// Package model defines the canonical credential-attempt records and the
// aggregate rows derived from them.
package model

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Individual is a single observed credential attempt. ID and Timestamp are
// assigned by the aggregator on admission and are zero until then.
type Individual struct {
	ID        string `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	Password  string `db:"password" json:"password"`
	IP        string `db:"ip" json:"ip"`
	Protocol  string `db:"protocol" json:"protocol"`
	Timestamp int64  `db:"timestamp" json:"timestamp"`
}

// ProcessedIndividual is an Individual with IP-intelligence fields attached.
// Provider fields the upstream response omitted are stored as empty strings,
// false, or zero rather than NULL, so the row always scans into plain types.
// Timestamp is the originating event's timestamp, not the enrichment time.
type ProcessedIndividual struct {
	ID            string         `db:"id" json:"id"`
	Username      string         `db:"username" json:"username"`
	Password      string         `db:"password" json:"password"`
	IP            string         `db:"ip" json:"ip"`
	Protocol      string         `db:"protocol" json:"protocol"`
	Hostname      string         `db:"hostname" json:"hostname"`
	City          string         `db:"city" json:"city"`
	Region        string         `db:"region" json:"region"`
	Country       string         `db:"country" json:"country"`
	Loc           string         `db:"loc" json:"loc"`
	Org           string         `db:"org" json:"org"`
	Postal        string         `db:"postal" json:"postal"`
	ASN           string         `db:"asn" json:"asn"`
	ASNName       string         `db:"asn_name" json:"asn_name"`
	ASNDomain     string         `db:"asn_domain" json:"asn_domain"`
	ASNRoute      string         `db:"asn_route" json:"asn_route"`
	ASNType       string         `db:"asn_type" json:"asn_type"`
	CompanyName   string         `db:"company_name" json:"company_name"`
	CompanyDomain string         `db:"company_domain" json:"company_domain"`
	CompanyType   string         `db:"company_type" json:"company_type"`
	VPN           bool           `db:"vpn" json:"vpn"`
	Proxy         bool           `db:"proxy" json:"proxy"`
	Tor           bool           `db:"tor" json:"tor"`
	Relay         bool           `db:"relay" json:"relay"`
	Hosting       bool           `db:"hosting" json:"hosting"`
	Service       string         `db:"service" json:"service"`
	AbuseAddress  string         `db:"abuse_address" json:"abuse_address"`
	AbuseCountry  string         `db:"abuse_country" json:"abuse_country"`
	AbuseEmail    string         `db:"abuse_email" json:"abuse_email"`
	AbuseName     string         `db:"abuse_name" json:"abuse_name"`
	AbuseNetwork  string         `db:"abuse_network" json:"abuse_network"`
	AbusePhone    string         `db:"abuse_phone" json:"abuse_phone"`
	DomainIP      string         `db:"domain_ip" json:"domain_ip"`
	DomainTotal   int64          `db:"domain_total" json:"domain_total"`
	Domains       pq.StringArray `db:"domains" json:"domains"`
	Timestamp     int64          `db:"timestamp" json:"timestamp"`
	Timezone      string         `db:"timezone" json:"timezone"`
}

// CopyEnrichmentFrom copies every enrichment field from src onto p. The
// identity fields (id, credentials, ip, protocol, timestamp) stay untouched.
func (p *ProcessedIndividual) CopyEnrichmentFrom(src *ProcessedIndividual) {
	p.Hostname = src.Hostname
	p.City = src.City
	p.Region = src.Region
	p.Country = src.Country
	p.Loc = src.Loc
	p.Org = src.Org
	p.Postal = src.Postal
	p.ASN = src.ASN
	p.ASNName = src.ASNName
	p.ASNDomain = src.ASNDomain
	p.ASNRoute = src.ASNRoute
	p.ASNType = src.ASNType
	p.CompanyName = src.CompanyName
	p.CompanyDomain = src.CompanyDomain
	p.CompanyType = src.CompanyType
	p.VPN = src.VPN
	p.Proxy = src.Proxy
	p.Tor = src.Tor
	p.Relay = src.Relay
	p.Hosting = src.Hosting
	p.Service = src.Service
	p.AbuseAddress = src.AbuseAddress
	p.AbuseCountry = src.AbuseCountry
	p.AbuseEmail = src.AbuseEmail
	p.AbuseName = src.AbuseName
	p.AbuseNetwork = src.AbuseNetwork
	p.AbusePhone = src.AbusePhone
	p.DomainIP = src.DomainIP
	p.DomainTotal = src.DomainTotal
	p.Domains = pq.StringArray{}
	if len(src.Domains) > 0 {
		p.Domains = append(pq.StringArray{}, src.Domains...)
	}
	p.Timezone = src.Timezone
}

// Location is the map-plotting projection of a processed record.
type Location struct {
	ID        string `db:"id" json:"id"`
	IP        string `db:"ip" json:"ip"`
	Loc       string `db:"loc" json:"loc"`
	City      string `db:"city" json:"city"`
	Country   string `db:"country" json:"country"`
	Timestamp int64  `db:"timestamp" json:"timestamp"`
}

// NewID returns a fresh 32-character lowercase hex identifier.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
