package store

const schema = `
CREATE TABLE IF NOT EXISTS scrobbles (
    id           TEXT PRIMARY KEY,
    source       TEXT NOT NULL,
    song_id      TEXT NOT NULL,
    artist_id    TEXT NOT NULL DEFAULT '',
    album_id     TEXT NOT NULL DEFAULT '',
    song         TEXT NOT NULL DEFAULT '',
    artist       TEXT NOT NULL DEFAULT '',
    album        TEXT NOT NULL DEFAULT '',
    played_at    DATETIME NOT NULL,
    collected_at DATETIME NOT NULL,
    UNIQUE(source, song_id, played_at)
);

CREATE INDEX IF NOT EXISTS idx_scrobbles_played_at ON scrobbles(played_at);
CREATE INDEX IF NOT EXISTS idx_scrobbles_song ON scrobbles(song_id);
CREATE INDEX IF NOT EXISTS idx_scrobbles_source ON scrobbles(source);

CREATE TABLE IF NOT EXISTS recommendations (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    position     INTEGER NOT NULL,
    song_id      TEXT NOT NULL,
    artist_id    TEXT NOT NULL DEFAULT '',
    album_id     TEXT NOT NULL DEFAULT '',
    song         TEXT NOT NULL DEFAULT '',
    artist       TEXT NOT NULL DEFAULT '',
    album        TEXT NOT NULL DEFAULT '',
    play_count   INTEGER NOT NULL DEFAULT 0,
    unique_days  INTEGER NOT NULL DEFAULT 0,
    artist_plays INTEGER NOT NULL DEFAULT 0,
    album_plays  INTEGER NOT NULL DEFAULT 0,
    score        REAL NOT NULL DEFAULT 0,
    window_start DATETIME NOT NULL,
    window_end   DATETIME NOT NULL,
    generated_at DATETIME NOT NULL,
    notified     BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_recommendations_score ON recommendations(score);
CREATE INDEX IF NOT EXISTS idx_recommendations_song ON recommendations(song_id);
`
