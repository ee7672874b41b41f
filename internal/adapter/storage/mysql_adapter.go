package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/roomsync/internal/core/domain"
	"github.com/rl1809/roomsync/internal/port"
)

type MySQLOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenMySQL connects with parseTime forced on, since listing rows carry
// DATETIME columns.
func OpenMySQL(ctx context.Context, dsn string, opts MySQLOptions) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(100) NOT NULL,
		contact VARCHAR(50) NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS housing_listings (
		id CHAR(36) PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		post_type VARCHAR(20) NOT NULL,
		housing_property VARCHAR(100) NOT NULL,
		apartment_plan VARCHAR(50) NOT NULL,
		number_of_roommates_preferred INT NOT NULL,
		gender_preference VARCHAR(20) NOT NULL,
		cost_preference_min DOUBLE NOT NULL,
		cost_preference_max DOUBLE NOT NULL,
		lease_term VARCHAR(50) NOT NULL,
		dietary_restrictions VARCHAR(200) NOT NULL,
		course_program VARCHAR(100) NOT NULL,
		community VARCHAR(100) NOT NULL,
		miscellaneous TEXT NOT NULL,
		status VARCHAR(20) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_housing_created (created_at),
		CONSTRAINT fk_housing_owner FOREIGN KEY (user_id) REFERENCES identities (id)
	)`,
	`CREATE TABLE IF NOT EXISTS marketplace_listings (
		id CHAR(36) PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL,
		category VARCHAR(50) NOT NULL,
		price DOUBLE NOT NULL,
		item_condition VARCHAR(50) NOT NULL,
		image_url VARCHAR(500) NOT NULL,
		status VARCHAR(20) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_marketplace_created (created_at),
		CONSTRAINT fk_marketplace_owner FOREIGN KEY (user_id) REFERENCES identities (id)
	)`,
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// Migrate creates any missing tables.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLAdapter) CreateIdentity(ctx context.Context, identity domain.Identity) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO identities (id, name, email, contact, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		identity.ID, identity.Name, identity.Email, identity.Contact, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	var identity domain.Identity
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, email, contact, created_at
		FROM identities WHERE id = ?`, id,
	).Scan(&identity.ID, &identity.Name, &identity.Email, &identity.Contact, &identity.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return &identity, nil
}

const housingColumns = `id, user_id, post_type, housing_property, apartment_plan,
	number_of_roommates_preferred, gender_preference, cost_preference_min, cost_preference_max,
	lease_term, dietary_restrictions, course_program, community, miscellaneous, status, created_at`

func (m *MySQLAdapter) CreateHousing(ctx context.Context, l domain.HousingListing) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO housing_listings (`+housingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OwnerID, l.PostType, l.HousingProperty, l.ApartmentPlan,
		l.RoommatesPreferred, l.GenderPreference, l.CostMin, l.CostMax,
		l.LeaseTerm, l.DietaryRestrictions, l.CourseProgram, l.Community, l.Miscellaneous,
		l.Status, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert housing listing: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetHousing(ctx context.Context, id string) (*domain.HousingListing, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+housingColumns+` FROM housing_listings WHERE id = ?`, id)

	l, err := scanHousing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query housing listing: %w", err)
	}
	return &l, nil
}

func (m *MySQLAdapter) ListHousing(ctx context.Context) ([]domain.HousingListing, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+housingColumns+` FROM housing_listings ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query housing listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.HousingListing
	for rows.Next() {
		l, err := scanHousing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan housing listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate housing listings: %w", err)
	}
	return listings, nil
}

const marketplaceColumns = `id, user_id, title, description, category, price,
	item_condition, image_url, status, created_at`

func (m *MySQLAdapter) CreateMarketplace(ctx context.Context, l domain.MarketplaceListing) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO marketplace_listings (`+marketplaceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OwnerID, l.Title, l.Description, l.Category, l.Price,
		l.Condition, l.ImageURL, l.Status, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert marketplace listing: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetMarketplace(ctx context.Context, id string) (*domain.MarketplaceListing, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+marketplaceColumns+` FROM marketplace_listings WHERE id = ?`, id)

	l, err := scanMarketplace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query marketplace listing: %w", err)
	}
	return &l, nil
}

func (m *MySQLAdapter) ListMarketplace(ctx context.Context) ([]domain.MarketplaceListing, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+marketplaceColumns+` FROM marketplace_listings ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query marketplace listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.MarketplaceListing
	for rows.Next() {
		l, err := scanMarketplace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan marketplace listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marketplace listings: %w", err)
	}
	return listings, nil
}

// UpdateStatus is a compare-and-swap on the status column: the row only
// changes if it still holds from.
func (m *MySQLAdapter) UpdateStatus(ctx context.Context, listingType domain.ListingType, id string, from, to domain.Status) error {
	table, err := listingTable(listingType)
	if err != nil {
		return err
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE `+table+`
		SET status = ?
		WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}

	return nil
}

func listingTable(listingType domain.ListingType) (string, error) {
	switch listingType {
	case domain.ListingTypeHousing:
		return "housing_listings", nil
	case domain.ListingTypeMarketplace:
		return "marketplace_listings", nil
	}
	return "", fmt.Errorf("unknown listing type %q", listingType)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHousing(s scanner) (domain.HousingListing, error) {
	var l domain.HousingListing
	err := s.Scan(
		&l.ID, &l.OwnerID, &l.PostType, &l.HousingProperty, &l.ApartmentPlan,
		&l.RoommatesPreferred, &l.GenderPreference, &l.CostMin, &l.CostMax,
		&l.LeaseTerm, &l.DietaryRestrictions, &l.CourseProgram, &l.Community, &l.Miscellaneous,
		&l.Status, &l.CreatedAt,
	)
	return l, err
}

func scanMarketplace(s scanner) (domain.MarketplaceListing, error) {
	var l domain.MarketplaceListing
	err := s.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Category, &l.Price,
		&l.Condition, &l.ImageURL, &l.Status, &l.CreatedAt,
	)
	return l, err
}
