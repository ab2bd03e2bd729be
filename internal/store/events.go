package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/brute-sh/brute/internal/model"
)

const insertProcessedQuery = `
	INSERT INTO processed_individual (
		id, username, password, ip, protocol, hostname, city, region, country, loc, org, postal,
		asn, asn_name, asn_domain, asn_route, asn_type,
		company_name, company_domain, company_type,
		vpn, proxy, tor, relay, hosting, service,
		abuse_address, abuse_country, abuse_email, abuse_name, abuse_network, abuse_phone,
		domain_ip, domain_total, domains, timestamp, timezone
	) VALUES (
		:id, :username, :password, :ip, :protocol, :hostname, :city, :region, :country, :loc, :org, :postal,
		:asn, :asn_name, :asn_domain, :asn_route, :asn_type,
		:company_name, :company_domain, :company_type,
		:vpn, :proxy, :tor, :relay, :hosting, :service,
		:abuse_address, :abuse_country, :abuse_email, :abuse_name, :abuse_network, :abuse_phone,
		:domain_ip, :domain_total, :domains, :timestamp, :timezone
	) RETURNING *`

// InsertIndividual persists an admitted event and returns the stored row.
// The caller has already assigned id and timestamp.
func (s *Store) InsertIndividual(ctx context.Context, ind model.Individual) (model.Individual, error) {
	const query = `
		INSERT INTO individual (id, username, password, ip, protocol, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *`
	var row model.Individual
	err := s.db.GetContext(ctx, &row, query,
		ind.ID, ind.Username, ind.Password, ind.IP, ind.Protocol, ind.Timestamp)
	return row, errors.Wrap(err, "insert individual")
}

// InsertProcessed persists an enriched event and returns the stored row.
func (s *Store) InsertProcessed(ctx context.Context, p model.ProcessedIndividual) (model.ProcessedIndividual, error) {
	if p.Domains == nil {
		// A nil array would bind NULL into a NOT NULL column.
		p.Domains = pq.StringArray{}
	}
	rows, err := sqlx.NamedQueryContext(ctx, s.db, insertProcessedQuery, p)
	if err != nil {
		return model.ProcessedIndividual{}, errors.Wrap(err, "insert processed_individual")
	}
	defer rows.Close()

	var row model.ProcessedIndividual
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.ProcessedIndividual{}, errors.Wrap(err, "insert processed_individual")
		}
		return model.ProcessedIndividual{}, errors.New("insert processed_individual: no row returned")
	}
	if err := rows.StructScan(&row); err != nil {
		return model.ProcessedIndividual{}, errors.Wrap(err, "scan processed_individual")
	}
	return row, nil
}

// LatestProcessedByIP returns the most recent enriched row for ip, or nil
// when the address has never been enriched.
func (s *Store) LatestProcessedByIP(ctx context.Context, ip string) (*model.ProcessedIndividual, error) {
	const query = `
		SELECT * FROM processed_individual
		WHERE ip = $1
		ORDER BY timestamp DESC
		LIMIT 1`
	var row model.ProcessedIndividual
	err := s.db.GetContext(ctx, &row, query, ip)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select latest processed_individual")
	}
	return &row, nil
}

// RecentProcessed returns the newest enriched events, newest first.
func (s *Store) RecentProcessed(ctx context.Context, limit int) ([]model.ProcessedIndividual, error) {
	const query = `
		SELECT * FROM processed_individual
		ORDER BY timestamp DESC
		LIMIT $1`
	rows := []model.ProcessedIndividual{}
	err := s.db.SelectContext(ctx, &rows, query, limit)
	return rows, errors.Wrap(err, "select recent processed_individual")
}

// RecentLocations returns the newest enriched events projected down to the
// fields a map plot needs, newest first.
func (s *Store) RecentLocations(ctx context.Context, limit int) ([]model.Location, error) {
	const query = `
		SELECT id, ip, loc, city, country, timestamp FROM processed_individual
		ORDER BY timestamp DESC
		LIMIT $1`
	rows := []model.Location{}
	err := s.db.SelectContext(ctx, &rows, query, limit)
	return rows, errors.Wrap(err, "select recent locations")
}
