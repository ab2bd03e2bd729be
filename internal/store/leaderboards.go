package store

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/brute-sh/brute/internal/model"
)

// bumpCounter runs the single-statement monotone upsert every leaderboard
// shares: insert the key with the given amount, or add the amount to the
// existing row on key conflict. The resulting row is scanned into dest.
// table and column are compile-time constants, never caller input.
func (s *Store) bumpCounter(ctx context.Context, dest interface{}, table, column, key string, amount int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, amount)
		VALUES ($1, $2)
		ON CONFLICT (%s)
		DO UPDATE SET amount = %s.amount + EXCLUDED.amount
		RETURNING *`, table, column, column, table)
	err := s.db.GetContext(ctx, dest, query, key, amount)
	return errors.Wrapf(err, "bump %s", table)
}

func (s *Store) listCounters(ctx context.Context, dest interface{}, table, column string, limit int) error {
	query := fmt.Sprintf(`
		SELECT * FROM %s
		ORDER BY amount DESC, %s ASC
		LIMIT $1`, table, column)
	err := s.db.SelectContext(ctx, dest, query, limit)
	return errors.Wrapf(err, "list %s", table)
}

func (s *Store) BumpUsername(ctx context.Context, username string) (model.TopUsername, error) {
	var row model.TopUsername
	err := s.bumpCounter(ctx, &row, "top_username", "username", username, 1)
	return row, err
}

func (s *Store) BumpPassword(ctx context.Context, password string) (model.TopPassword, error) {
	var row model.TopPassword
	err := s.bumpCounter(ctx, &row, "top_password", "password", password, 1)
	return row, err
}

func (s *Store) BumpIP(ctx context.Context, ip string) (model.TopIP, error) {
	var row model.TopIP
	err := s.bumpCounter(ctx, &row, "top_ip", "ip", ip, 1)
	return row, err
}

// BumpProtocol adds amount to a protocol's count. The manual increment
// endpoint passes amounts larger than one; the pipeline always passes one.
func (s *Store) BumpProtocol(ctx context.Context, protocol string, amount int64) (model.TopProtocol, error) {
	var row model.TopProtocol
	err := s.bumpCounter(ctx, &row, "top_protocol", "protocol", protocol, amount)
	return row, err
}

func (s *Store) BumpCity(ctx context.Context, city string) (model.TopCity, error) {
	var row model.TopCity
	err := s.bumpCounter(ctx, &row, "top_city", "city", city, 1)
	return row, err
}

func (s *Store) BumpRegion(ctx context.Context, region string) (model.TopRegion, error) {
	var row model.TopRegion
	err := s.bumpCounter(ctx, &row, "top_region", "region", region, 1)
	return row, err
}

func (s *Store) BumpCountry(ctx context.Context, country string) (model.TopCountry, error) {
	var row model.TopCountry
	err := s.bumpCounter(ctx, &row, "top_country", "country", country, 1)
	return row, err
}

func (s *Store) BumpTimezone(ctx context.Context, timezone string) (model.TopTimezone, error) {
	var row model.TopTimezone
	err := s.bumpCounter(ctx, &row, "top_timezone", "timezone", timezone, 1)
	return row, err
}

func (s *Store) BumpOrg(ctx context.Context, org string) (model.TopOrg, error) {
	var row model.TopOrg
	err := s.bumpCounter(ctx, &row, "top_org", "org", org, 1)
	return row, err
}

func (s *Store) BumpPostal(ctx context.Context, postal string) (model.TopPostal, error) {
	var row model.TopPostal
	err := s.bumpCounter(ctx, &row, "top_postal", "postal", postal, 1)
	return row, err
}

// BumpCombo counts a (username, password) pair. A fresh id is offered for
// the first-insert case; on conflict RETURNING yields the stored row, so the
// original id survives and the offered one is discarded.
func (s *Store) BumpCombo(ctx context.Context, username, password string) (model.TopUsrPassCombo, error) {
	const query = `
		INSERT INTO top_usr_pass_combo (id, username, password, amount)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (username, password)
		DO UPDATE SET amount = top_usr_pass_combo.amount + EXCLUDED.amount
		RETURNING *`
	var row model.TopUsrPassCombo
	err := s.db.GetContext(ctx, &row, query, model.NewID(), username, password)
	return row, errors.Wrap(err, "bump top_usr_pass_combo")
}

func (s *Store) TopUsernames(ctx context.Context, limit int) ([]model.TopUsername, error) {
	rows := []model.TopUsername{}
	err := s.listCounters(ctx, &rows, "top_username", "username", limit)
	return rows, err
}

func (s *Store) TopPasswords(ctx context.Context, limit int) ([]model.TopPassword, error) {
	rows := []model.TopPassword{}
	err := s.listCounters(ctx, &rows, "top_password", "password", limit)
	return rows, err
}

func (s *Store) TopIPs(ctx context.Context, limit int) ([]model.TopIP, error) {
	rows := []model.TopIP{}
	err := s.listCounters(ctx, &rows, "top_ip", "ip", limit)
	return rows, err
}

func (s *Store) TopProtocols(ctx context.Context, limit int) ([]model.TopProtocol, error) {
	rows := []model.TopProtocol{}
	err := s.listCounters(ctx, &rows, "top_protocol", "protocol", limit)
	return rows, err
}

func (s *Store) TopCities(ctx context.Context, limit int) ([]model.TopCity, error) {
	rows := []model.TopCity{}
	err := s.listCounters(ctx, &rows, "top_city", "city", limit)
	return rows, err
}

func (s *Store) TopRegions(ctx context.Context, limit int) ([]model.TopRegion, error) {
	rows := []model.TopRegion{}
	err := s.listCounters(ctx, &rows, "top_region", "region", limit)
	return rows, err
}

func (s *Store) TopCountries(ctx context.Context, limit int) ([]model.TopCountry, error) {
	rows := []model.TopCountry{}
	err := s.listCounters(ctx, &rows, "top_country", "country", limit)
	return rows, err
}

func (s *Store) TopTimezones(ctx context.Context, limit int) ([]model.TopTimezone, error) {
	rows := []model.TopTimezone{}
	err := s.listCounters(ctx, &rows, "top_timezone", "timezone", limit)
	return rows, err
}

func (s *Store) TopOrgs(ctx context.Context, limit int) ([]model.TopOrg, error) {
	rows := []model.TopOrg{}
	err := s.listCounters(ctx, &rows, "top_org", "org", limit)
	return rows, err
}

func (s *Store) TopPostals(ctx context.Context, limit int) ([]model.TopPostal, error) {
	rows := []model.TopPostal{}
	err := s.listCounters(ctx, &rows, "top_postal", "postal", limit)
	return rows, err
}

// TopCombos orders by amount with the username tiebreak; pairs sharing a
// username fall back to the password ordering.
func (s *Store) TopCombos(ctx context.Context, limit int) ([]model.TopUsrPassCombo, error) {
	const query = `
		SELECT * FROM top_usr_pass_combo
		ORDER BY amount DESC, username ASC, password ASC
		LIMIT $1`
	rows := []model.TopUsrPassCombo{}
	err := s.db.SelectContext(ctx, &rows, query, limit)
	return rows, errors.Wrap(err, "list top_usr_pass_combo")
}
