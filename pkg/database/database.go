package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/thelorax67/HackClub-Events-Radar/pkg/config"
	"github.com/thelorax67/HackClub-Events-Radar/pkg/extract"
)

var DebugLog func(string, ...interface{})

type DB struct {
	conn    *sql.DB
	enabled bool
}

type HostRecord struct {
	Domain    string
	Host      string
	Status    string
	FirstSeen time.Time
	LastSeen  time.Time
}

type EventRecord struct {
	Domain    string
	Name      string
	URL       string
	Dates     string
	Summary   string
	FirstSeen time.Time
	LastSeen  time.Time
}

const DBName = "hackradar_track"

func New(cfg *config.Database) (*DB, error) {
	db := &DB{
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		return db, nil
	}

	postgresConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password)

	postgresConn, err := sql.Open("postgres", postgresConnStr)
	if err != nil {
		db.enabled = false
		return db, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer postgresConn.Close()

	if err := postgresConn.Ping(); err != nil {
		db.enabled = false
		return db, fmt.Errorf("failed to ping postgres: %w", err)
	}

	var exists bool
	err = postgresConn.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", DBName).Scan(&exists)
	if err != nil {
		db.enabled = false
		return db, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		_, err = postgresConn.Exec(fmt.Sprintf("CREATE DATABASE %s", DBName))
		if err != nil {
			db.enabled = false
			return db, fmt.Errorf("failed to create database: %w", err)
		}
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, DBName)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		db.enabled = false
		return db, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		db.enabled = false
		return db, fmt.Errorf("failed to ping database: %w", err)
	}

	db.conn = conn

	if err := db.initSchema(); err != nil {
		return db, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	if !db.enabled || db.conn == nil {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS hosts (
		id SERIAL PRIMARY KEY,
		domain VARCHAR(255) NOT NULL,
		host VARCHAR(512) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'NEW',
		first_seen TIMESTAMP NOT NULL DEFAULT NOW(),
		last_seen TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE(domain, host)
	);

	CREATE TABLE IF NOT EXISTS events (
		id SERIAL PRIMARY KEY,
		domain VARCHAR(255) NOT NULL,
		name VARCHAR(512) NOT NULL,
		url VARCHAR(1024) NOT NULL,
		dates VARCHAR(255),
		summary TEXT,
		first_seen TIMESTAMP NOT NULL DEFAULT NOW(),
		last_seen TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE(domain, name, url)
	);

	CREATE INDEX IF NOT EXISTS idx_hosts_domain ON hosts(domain);
	CREATE INDEX IF NOT EXISTS idx_hosts_status ON hosts(status);
	CREATE INDEX IF NOT EXISTS idx_events_domain ON events(domain);
	`

	_, err := db.conn.Exec(schema)
	return err
}

func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) IsEnabled() bool {
	return db.enabled && db.conn != nil
}

// TrackHosts records which hosts answered with a success outcome this run.
// Hosts seen before go ACTIVE, unseen hosts go NEW, and previously tracked
// hosts missing from this run go DEAD.
func (db *DB) TrackHosts(domain string, liveHosts []string) error {
	if !db.IsEnabled() {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	currentHosts := make(map[string]bool)
	for _, host := range liveHosts {
		currentHosts[host] = true
	}

	for host := range currentHosts {
		var exists bool
		err := tx.QueryRow(`
			SELECT EXISTS(SELECT 1 FROM hosts WHERE domain = $1 AND host = $2)
		`, domain, host).Scan(&exists)
		if err != nil {
			return err
		}

		if exists {
			if DebugLog != nil {
				DebugLog("updating host %s to ACTIVE in database", host)
			}
			_, err = tx.Exec(`
				UPDATE hosts
				SET status = 'ACTIVE', last_seen = NOW()
				WHERE domain = $1 AND host = $2
			`, domain, host)
		} else {
			if DebugLog != nil {
				DebugLog("inserting new host %s with status NEW into database", host)
			}
			_, err = tx.Exec(`
				INSERT INTO hosts (domain, host, status, first_seen, last_seen)
				VALUES ($1, $2, 'NEW', NOW(), NOW())
			`, domain, host)
		}

		if err != nil {
			return err
		}
	}

	rows, err := tx.Query(`
		SELECT host FROM hosts
		WHERE domain = $1 AND status != 'DEAD'
	`, domain)
	if err != nil {
		return err
	}
	defer rows.Close()

	var deadHosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return err
		}
		if !currentHosts[host] {
			deadHosts = append(deadHosts, host)
		}
	}

	for _, host := range deadHosts {
		if DebugLog != nil {
			DebugLog("marking host %s as DEAD in database (no success this run)", host)
		}
		_, err = tx.Exec(`
			UPDATE hosts
			SET status = 'DEAD', last_seen = NOW()
			WHERE domain = $1 AND host = $2
		`, domain, host)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// TrackEvents upserts extracted hackathon records, keeping first_seen as the
// discovery timestamp and bumping last_seen on every run that still finds
// the event.
func (db *DB) TrackEvents(domain string, records []extract.Record) error {
	if !db.IsEnabled() || len(records) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, record := range records {
		_, err := tx.Exec(`
			INSERT INTO events (domain, name, url, dates, summary, first_seen, last_seen)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			ON CONFLICT (domain, name, url)
			DO UPDATE SET dates = $4, summary = $5, last_seen = NOW()
		`, domain, record.Name, record.URL, record.Dates, record.Summary)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) QueryHosts(domain string, status string) ([]HostRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT domain, host, status, first_seen, last_seen
		FROM hosts
	`
	var conditions []string
	var args []interface{}

	if domain != "" {
		args = append(args, domain)
		conditions = append(conditions, fmt.Sprintf("domain = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY first_seen DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []HostRecord
	for rows.Next() {
		var r HostRecord
		if err := rows.Scan(&r.Domain, &r.Host, &r.Status, &r.FirstSeen, &r.LastSeen); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, nil
}

func (db *DB) QueryEvents(domain string) ([]EventRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT domain, name, url, COALESCE(dates, ''), COALESCE(summary, ''), first_seen, last_seen
		FROM events
	`
	var args []interface{}

	if domain != "" {
		query += " WHERE domain = $1"
		args = append(args, domain)
	}

	query += " ORDER BY first_seen DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var r EventRecord
		if err := rows.Scan(&r.Domain, &r.Name, &r.URL, &r.Dates, &r.Summary, &r.FirstSeen, &r.LastSeen); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, nil
}
