package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/s166harth/lastfm-recommender/pkg/scrobble"
)

// Recommendation is one persisted row of a ranked run: the four score
// components, the final score, and the window it was computed over.
// Notified tracks whether the song has appeared in a digest already.
type Recommendation struct {
	ID          int64     `db:"id" json:"id"`
	Position    int       `db:"position" json:"position"`
	SongID      string    `db:"song_id" json:"song_id"`
	ArtistID    string    `db:"artist_id" json:"artist_id"`
	AlbumID     string    `db:"album_id" json:"album_id,omitempty"`
	Song        string    `db:"song" json:"song"`
	Artist      string    `db:"artist" json:"artist"`
	Album       string    `db:"album" json:"album,omitempty"`
	PlayCount   int       `db:"play_count" json:"play_count"`
	UniqueDays  int       `db:"unique_days" json:"unique_days"`
	ArtistPlays int       `db:"artist_plays" json:"artist_total_plays"`
	AlbumPlays  int       `db:"album_plays" json:"album_total_plays"`
	Score       float64   `db:"score" json:"final_score"`
	WindowStart time.Time `db:"window_start" json:"window_start"`
	WindowEnd   time.Time `db:"window_end" json:"window_end"`
	GeneratedAt time.Time `db:"generated_at" json:"generated_at"`
	Notified    bool      `db:"notified" json:"notified"`
}

// ListOpts controls scrobble listing.
type ListOpts struct {
	Source scrobble.SourceType
	From   time.Time
	To     time.Time
	Limit  int
}

// RecListOpts controls recommendation listing.
type RecListOpts struct {
	MinScore   float64
	Limit      int
	Unnotified bool
}

// Store is the persistence interface.
type Store interface {
	UpsertScrobble(ctx context.Context, s *scrobble.Scrobble) error
	UpsertScrobbles(ctx context.Context, scrobbles []scrobble.Scrobble) error
	ListScrobbles(ctx context.Context, opts ListOpts) ([]scrobble.Scrobble, error)
	CountScrobblesBySource(ctx context.Context) (map[scrobble.SourceType]int, error)

	ReplaceRecommendations(ctx context.Context, recs []Recommendation) error
	ListRecommendations(ctx context.Context, opts RecListOpts) ([]Recommendation, error)
	MarkNotified(ctx context.Context, songID string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertScrobble(ctx context.Context, sc *scrobble.Scrobble) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrobbles (id, source, song_id, artist_id, album_id, song, artist, album, played_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			artist_id = excluded.artist_id,
			album_id = excluded.album_id,
			song = excluded.song,
			artist = excluded.artist,
			album = excluded.album,
			collected_at = excluded.collected_at
	`, sc.ID, sc.Source, sc.SongID, sc.ArtistID, sc.AlbumID,
		sc.Song, sc.Artist, sc.Album, sc.PlayedAt, sc.CollectedAt)
	if err != nil {
		return fmt.Errorf("upsert scrobble %s: %w", sc.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertScrobbles(ctx context.Context, scrobbles []scrobble.Scrobble) error {
	for i := range scrobbles {
		if err := s.UpsertScrobble(ctx, &scrobbles[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListScrobbles(ctx context.Context, opts ListOpts) ([]scrobble.Scrobble, error) {
	query := "SELECT * FROM scrobbles WHERE 1=1"
	var args []any

	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}
	if !opts.From.IsZero() {
		query += " AND played_at >= ?"
		args = append(args, opts.From)
	}
	if !opts.To.IsZero() {
		query += " AND played_at <= ?"
		args = append(args, opts.To)
	}

	query += " ORDER BY played_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var scrobbles []scrobble.Scrobble
	if err := s.db.SelectContext(ctx, &scrobbles, query, args...); err != nil {
		return nil, fmt.Errorf("list scrobbles: %w", err)
	}
	return scrobbles, nil
}

func (s *SQLiteStore) CountScrobblesBySource(ctx context.Context) (map[scrobble.SourceType]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT source, COUNT(*) as cnt FROM scrobbles GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count scrobbles by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[scrobble.SourceType]int)
	for rows.Next() {
		var src string
		var cnt int
		if err := rows.Scan(&src, &cnt); err != nil {
			return nil, err
		}
		counts[scrobble.SourceType(src)] = cnt
	}
	return counts, rows.Err()
}

// ReplaceRecommendations swaps in a freshly computed ranking. The
// notified flag carries over by song id so a song already announced in
// a digest is not announced again just because the list was recomputed.
func (s *SQLiteStore) ReplaceRecommendations(ctx context.Context, recs []Recommendation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace recommendations: %w", err)
	}
	defer tx.Rollback()

	var notified []string
	if err := tx.SelectContext(ctx, &notified,
		"SELECT song_id FROM recommendations WHERE notified = 1"); err != nil {
		return fmt.Errorf("load notified songs: %w", err)
	}
	notifiedSet := make(map[string]bool, len(notified))
	for _, id := range notified {
		notifiedSet[id] = true
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM recommendations"); err != nil {
		return fmt.Errorf("clear recommendations: %w", err)
	}

	for i := range recs {
		r := &recs[i]
		r.Notified = r.Notified || notifiedSet[r.SongID]
		res, err := tx.ExecContext(ctx, `
			INSERT INTO recommendations (position, song_id, artist_id, album_id, song, artist, album,
				play_count, unique_days, artist_plays, album_plays, score,
				window_start, window_end, generated_at, notified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.Position, r.SongID, r.ArtistID, r.AlbumID, r.Song, r.Artist, r.Album,
			r.PlayCount, r.UniqueDays, r.ArtistPlays, r.AlbumPlays, r.Score,
			r.WindowStart, r.WindowEnd, r.GeneratedAt, r.Notified)
		if err != nil {
			return fmt.Errorf("insert recommendation %s: %w", r.SongID, err)
		}
		r.ID, _ = res.LastInsertId()
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListRecommendations(ctx context.Context, opts RecListOpts) ([]Recommendation, error) {
	query := "SELECT * FROM recommendations WHERE 1=1"
	var args []any

	if opts.MinScore > 0 {
		query += " AND score >= ?"
		args = append(args, opts.MinScore)
	}
	if opts.Unnotified {
		query += " AND notified = 0"
	}

	query += " ORDER BY position"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var recs []Recommendation
	if err := s.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) MarkNotified(ctx context.Context, songID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE recommendations SET notified = 1 WHERE song_id = ?", songID)
	if err != nil {
		return fmt.Errorf("mark notified %s: %w", songID, err)
	}
	return nil
}
