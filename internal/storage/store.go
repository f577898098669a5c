package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"bustiming.sgbus.dev/internal/models"
)

// Persisted keys. They match the keys the browser front end keeps in localStorage,
// so an exported store can be loaded by either side.
const (
	KeyFavorites      = "favorites"
	KeyRecentSearches = "recent_searches"
	KeyTheme          = "theme"
	KeyStopsCache     = "sg_bus_stops_cache"
	KeyStopsTime      = "sg_bus_stops_time"
	KeyAPIKey         = "LTA_API_KEY"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

type entry struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	UpdatedAt int64  `db:"updated_at"`
}

// Store is a small key/value store on SQLite holding client-side state.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating when needed) the SQLite database at path. ":memory:"
// gives a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw value for key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	var e entry
	err = s.db.GetContext(ctx, &e, `SELECT key, value, updated_at FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return e.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.set(ctx, s.db, key, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) set(ctx context.Context, ex execer, key, value string) error {
	const q = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		   ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := ex.ExecContext(ctx, q, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in lexical order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	if err := s.db.SelectContext(ctx, &keys, `SELECT key FROM kv ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

func (s *Store) Favorites(ctx context.Context) ([]models.Favorite, error) {
	var favs []models.Favorite
	if _, err := s.getJSON(ctx, KeyFavorites, &favs); err != nil {
		return nil, err
	}
	return favs, nil
}

func (s *Store) SaveFavorites(ctx context.Context, favs []models.Favorite) error {
	if favs == nil {
		favs = []models.Favorite{}
	}
	return s.setJSON(ctx, KeyFavorites, favs)
}

func (s *Store) RecentSearches(ctx context.Context) ([]string, error) {
	var recent []string
	if _, err := s.getJSON(ctx, KeyRecentSearches, &recent); err != nil {
		return nil, err
	}
	return recent, nil
}

func (s *Store) SaveRecentSearches(ctx context.Context, recent []string) error {
	if recent == nil {
		recent = []string{}
	}
	return s.setJSON(ctx, KeyRecentSearches, recent)
}

// Theme returns the saved theme, "dark" when none was saved.
func (s *Store) Theme(ctx context.Context) (string, error) {
	theme, ok, err := s.Get(ctx, KeyTheme)
	if err != nil {
		return ThemeDark, err
	}
	if !ok || (theme != ThemeDark && theme != ThemeLight) {
		return ThemeDark, nil
	}
	return theme, nil
}

func (s *Store) SaveTheme(ctx context.Context, theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return fmt.Errorf("unknown theme %q", theme)
	}
	return s.Set(ctx, KeyTheme, theme)
}

// APIKey returns the client-side credential override, "" when unset.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	key, _, err := s.Get(ctx, KeyAPIKey)
	return key, err
}

// SaveAPIKey stores the override; an empty key removes it.
func (s *Store) SaveAPIKey(ctx context.Context, key string) error {
	if key == "" {
		return s.Delete(ctx, KeyAPIKey)
	}
	return s.Set(ctx, KeyAPIKey, key)
}

// LoadStops returns the cached stop directory and when it was fetched.
// ok is false when no cache was ever written.
func (s *Store) LoadStops(ctx context.Context) (stops []models.BusStop, fetchedAt time.Time, ok bool, err error) {
	rawTime, ok, err := s.Get(ctx, KeyStopsTime)
	if err != nil || !ok {
		return nil, time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(rawTime, 10, 64)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decode %s: %w", KeyStopsTime, err)
	}

	found, err := s.getJSON(ctx, KeyStopsCache, &stops)
	if err != nil || !found {
		return nil, time.Time{}, false, err
	}
	return stops, time.UnixMilli(ms), true, nil
}

// SaveStops writes the directory and its timestamp in one transaction.
func (s *Store) SaveStops(ctx context.Context, stops []models.BusStop, fetchedAt time.Time) error {
	data, err := json.Marshal(stops)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyStopsCache, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.set(ctx, tx, KeyStopsCache, string(data)); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.set(ctx, tx, KeyStopsTime, strconv.FormatInt(fetchedAt.UnixMilli(), 10)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
