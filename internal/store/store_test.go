package store

import (
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/brute-sh/brute/internal/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	// The postgres driver name keeps sqlx rewriting named binds to $N.
	return New(sqlx.NewDb(db, "postgres")), mock
}

var individualColumns = []string{"id", "username", "password", "ip", "protocol", "timestamp"}

var processedColumns = []string{
	"id", "username", "password", "ip", "protocol", "hostname", "city", "region", "country",
	"loc", "org", "postal", "asn", "asn_name", "asn_domain", "asn_route", "asn_type",
	"company_name", "company_domain", "company_type", "vpn", "proxy", "tor", "relay",
	"hosting", "service", "abuse_address", "abuse_country", "abuse_email", "abuse_name",
	"abuse_network", "abuse_phone", "domain_ip", "domain_total", "domains", "timestamp", "timezone",
}

// processedRow lays out a record in processedColumns order. The domains
// array is rendered the way the postgres wire protocol would hand it back.
func processedRow(p model.ProcessedIndividual) []driver.Value {
	domains := "{}"
	if len(p.Domains) > 0 {
		arr, _ := p.Domains.Value()
		domains = arr.(string)
	}
	return []driver.Value{
		p.ID, p.Username, p.Password, p.IP, p.Protocol, p.Hostname, p.City, p.Region, p.Country,
		p.Loc, p.Org, p.Postal, p.ASN, p.ASNName, p.ASNDomain, p.ASNRoute, p.ASNType,
		p.CompanyName, p.CompanyDomain, p.CompanyType, p.VPN, p.Proxy, p.Tor, p.Relay,
		p.Hosting, p.Service, p.AbuseAddress, p.AbuseCountry, p.AbuseEmail, p.AbuseName,
		p.AbuseNetwork, p.AbusePhone, p.DomainIP, p.DomainTotal, domains, p.Timestamp, p.Timezone,
	}
}

func processedRows(ps ...model.ProcessedIndividual) *sqlmock.Rows {
	rows := sqlmock.NewRows(processedColumns)
	for _, p := range ps {
		rows.AddRow(processedRow(p)...)
	}
	return rows
}

func sampleProcessed() model.ProcessedIndividual {
	return model.ProcessedIndividual{
		ID:        "0f8fad5bd9cb469fa16570867728950e",
		Username:  "root",
		Password:  "toor",
		IP:        "8.8.8.8",
		Protocol:  "SSH",
		Hostname:  "dns.google",
		City:      "Mountain View",
		Region:    "California",
		Country:   "US",
		Loc:       "37.4056,-122.0775",
		Org:       "AS15169 Google LLC",
		Postal:    "94043",
		ASN:       "AS15169",
		ASNName:   "Google LLC",
		Timezone:  "America/Los_Angeles",
		Domains:   nil,
		Timestamp: 1700000000000,
	}
}
