package database

const schema = `
-- Lineups subscribed on the provider account
CREATE TABLE lineups (
	lineup_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	uri TEXT NOT NULL,
	modified INTEGER NOT NULL
);

-- Stations are soft-deleted: active tracks lineup membership,
-- query_from_sd is user intent and survives membership churn
CREATE TABLE stations (
	station_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	broadcast_language TEXT,
	active INTEGER NOT NULL DEFAULT 0,
	query_from_sd INTEGER NOT NULL DEFAULT 0,
	logo_uri TEXT,
	logo_width INTEGER,
	logo_height INTEGER,
	logo_md5 TEXT,
	last_modified INTEGER NOT NULL
);

CREATE INDEX idx_stations_active ON stations(active);
CREATE INDEX idx_stations_query ON stations(query_from_sd, active);

-- One row per (station, day): the remote digest as of last check
CREATE TABLE schedule_index (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	station_id TEXT NOT NULL,
	start_date INTEGER NOT NULL,
	md5 TEXT NOT NULL,
	last_modified INTEGER NOT NULL,
	UNIQUE (station_id, start_date)
);

CREATE INDEX idx_schedule_index_station ON schedule_index(station_id, start_date);

-- One row per airing, fully replaced when the parent digest changes
CREATE TABLE schedule (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	station_id TEXT NOT NULL,
	schedule_index_id INTEGER NOT NULL,
	program_id TEXT NOT NULL,
	airtime INTEGER NOT NULL,
	duration INTEGER NOT NULL,
	audio_properties TEXT,
	video_properties TEXT,
	FOREIGN KEY (schedule_index_id) REFERENCES schedule_index(id) ON DELETE CASCADE
);

CREATE INDEX idx_schedule_parent ON schedule(schedule_index_id);
CREATE INDEX idx_schedule_station_airtime ON schedule(station_id, airtime);
CREATE INDEX idx_schedule_program ON schedule(program_id);

-- One row per distinct program, shared by all airings
CREATE TABLE programs (
	program_id TEXT PRIMARY KEY,
	md5 TEXT NOT NULL,
	title TEXT,
	episode_title TEXT,
	description_short TEXT,
	description_long TEXT,
	genres TEXT,
	cast_names TEXT,
	crew_names TEXT,
	entity_type TEXT,
	show_type TEXT,
	movie_year INTEGER,
	last_access INTEGER NOT NULL
);

-- Artwork links per program; payload column reserved
CREATE TABLE artwork (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	program_id TEXT NOT NULL,
	uri TEXT NOT NULL,
	aspect TEXT,
	caption TEXT,
	width INTEGER,
	height INTEGER,
	data BLOB,
	FOREIGN KEY (program_id) REFERENCES programs(program_id) ON DELETE CASCADE
);

CREATE INDEX idx_artwork_program ON artwork(program_id);
`

// migrations contains incremental schema changes, applied in order
// based on the current user_version. migrations[0] is empty because
// version 0 uses the base schema.
var migrations = []string{
	"",
}
