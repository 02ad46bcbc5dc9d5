package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"basedfrenzy.com/internal/game"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

// Ledger rows keep the historical column defaults (bait 10, rods 1) even
// though no read path consumes them; the player row is authoritative for
// bait and rods.
const (
	ledgerDefaultBait = 10
	ledgerDefaultRods = 1
)

// Player is the durable identity record, keyed by wallet address.
type Player struct {
	Address     string
	Username    string
	Bait        int64
	FishingRods int64
	LastSeen    time.Time
}

// Store persists players and inventory ledgers in SQLite.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL keeps readers off the writer's back; NORMAL is enough durability
	// for a store that journals economic intents separately.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			address TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			bait INTEGER NOT NULL DEFAULT 0,
			fishing_rods INTEGER NOT NULL DEFAULT 0,
			last_seen TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS inventories (
			address TEXT PRIMARY KEY REFERENCES players(address),
			items_json TEXT NOT NULL DEFAULT '[]',
			bait INTEGER NOT NULL DEFAULT 10,
			fishing_rods INTEGER NOT NULL DEFAULT 1
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// GetPlayer loads the identity record for address.
func (s *Store) GetPlayer(ctx context.Context, address string) (Player, error) {
	var (
		p    Player
		seen string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT address, username, bait, fishing_rods, last_seen FROM players WHERE address = ?`, address)
	if err := row.Scan(&p.Address, &p.Username, &p.Bait, &p.FishingRods, &seen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Player{}, ErrNotFound
		}
		return Player{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, seen); err == nil {
		p.LastSeen = t
	}
	return p, nil
}

// CreatePlayer inserts a new identity; a concurrent or earlier registration
// of the same address yields ErrExists.
func (s *Store) CreatePlayer(ctx context.Context, p Player) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO players(address, username, bait, fishing_rods, last_seen)
		 VALUES(?,?,?,?,?) ON CONFLICT(address) DO NOTHING`,
		p.Address, p.Username, p.Bait, p.FishingRods, p.LastSeen.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

// UpsertPlayer inserts the identity if missing, else refreshes username and
// last seen while preserving bait and rod counts. Used by the realtime
// authenticate path.
func (s *Store) UpsertPlayer(ctx context.Context, address, username string, seen time.Time) (Player, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players(address, username, bait, fishing_rods, last_seen)
		 VALUES(?,?,0,0,?)
		 ON CONFLICT(address) DO UPDATE SET username = excluded.username, last_seen = excluded.last_seen`,
		address, username, seen.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return Player{}, err
	}
	return s.GetPlayer(ctx, address)
}

// SavePlayer writes back a loaded player's mutable fields.
func (s *Store) SavePlayer(ctx context.Context, p Player) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET username = ?, bait = ?, fishing_rods = ?, last_seen = ? WHERE address = ?`,
		p.Username, p.Bait, p.FishingRods, p.LastSeen.UTC().Format(time.RFC3339Nano), p.Address)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastSeen refreshes the identity's last seen timestamp.
func (s *Store) TouchLastSeen(ctx context.Context, address string, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE players SET last_seen = ? WHERE address = ?`,
		t.UTC().Format(time.RFC3339Nano), address)
	return err
}

// EnsureLedger creates an empty ledger row for address if none exists and
// returns the current ledger either way.
func (s *Store) EnsureLedger(ctx context.Context, address string) (game.Ledger, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inventories(address, items_json, bait, fishing_rods)
		 VALUES(?, '[]', ?, ?) ON CONFLICT(address) DO NOTHING`,
		address, ledgerDefaultBait, ledgerDefaultRods)
	if err != nil {
		return game.Ledger{}, err
	}
	return s.GetLedger(ctx, address)
}

// GetLedger loads the inventory ledger for address.
func (s *Store) GetLedger(ctx context.Context, address string) (game.Ledger, error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT items_json FROM inventories WHERE address = ?`, address)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return game.Ledger{}, ErrNotFound
		}
		return game.Ledger{}, err
	}
	l := game.Ledger{Address: address, Items: []game.Holding{}}
	if err := json.Unmarshal([]byte(raw), &l.Items); err != nil {
		return game.Ledger{}, fmt.Errorf("ledger %s: %w", address, err)
	}
	if l.Items == nil {
		l.Items = []game.Holding{}
	}
	return l, nil
}

// SaveLedger writes back the ledger's item lines.
func (s *Store) SaveLedger(ctx context.Context, l game.Ledger) error {
	items := l.Items
	if items == nil {
		items = []game.Holding{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE inventories SET items_json = ? WHERE address = ?`, string(b), l.Address)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
