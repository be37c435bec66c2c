// Package schematest provides sample registries and matching SQLite DDL for
// tests of packages built on schema.
package schematest

import "github.com/dbsmedya/gofixture/internal/schema"

// Logical types of the music registry.
var (
	Artist      = schema.NewLogicalType("testapp", "artist")
	RecordLabel = schema.NewLogicalType("testapp", "recordlabel")
	Album       = schema.NewLogicalType("testapp", "album")
	Song        = schema.NewLogicalType("testapp", "song")
)

// Logical types of the events registry.
var (
	EventTag  = schema.NewLogicalType("eventol", "eventtag")
	Event     = schema.NewLogicalType("eventol", "event")
	EventDate = schema.NewLogicalType("eventol", "eventdate")
)

// MusicModels returns fresh models for artists, record labels, albums and
// songs. Albums reference an artist and a label; songs reference an album
// and many artists.
func MusicModels() []*schema.Model {
	return []*schema.Model{
		{
			Type:   Artist,
			Table:  "testapp_artist",
			Fields: []string{"id", "first_name", "last_name", "instrument"},
		},
		{
			Type:   RecordLabel,
			Table:  "testapp_recordlabel",
			Fields: []string{"id", "name"},
		},
		{
			Type:   Album,
			Table:  "testapp_album",
			Fields: []string{"id", "name", "release_date"},
			ForeignKeys: []schema.ForeignKey{
				{Attribute: "artist", Column: "artist_id", Target: Artist},
				{Attribute: "record_label", Column: "record_label_id", Target: RecordLabel},
			},
		},
		{
			Type:   Song,
			Table:  "testapp_song",
			Fields: []string{"id", "name", "release_date"},
			ForeignKeys: []schema.ForeignKey{
				{Attribute: "album", Column: "album_id", Target: Album},
			},
			ManyToMany: []schema.ManyToMany{
				{
					Attribute:    "artists",
					Target:       Artist,
					Through:      "testapp_song_artists",
					SourceColumn: "song_id",
					TargetColumn: "artist_id",
				},
			},
		},
	}
}

// MusicRegistry returns a validated registry of MusicModels.
func MusicRegistry() *schema.Registry {
	reg := schema.NewRegistry().MustRegister(MusicModels()...)
	if err := reg.Validate(); err != nil {
		panic(err)
	}
	return reg
}

// MusicSQLite creates the music tables in SQLite.
var MusicSQLite = []string{
	`CREATE TABLE testapp_artist (
		id INTEGER PRIMARY KEY,
		first_name VARCHAR(50) NOT NULL,
		last_name VARCHAR(50) NOT NULL,
		instrument VARCHAR(100) NOT NULL
	)`,
	`CREATE TABLE testapp_recordlabel (
		id INTEGER PRIMARY KEY,
		name VARCHAR(100) NOT NULL
	)`,
	`CREATE TABLE testapp_album (
		id INTEGER PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		release_date DATE NOT NULL,
		artist_id INTEGER NOT NULL REFERENCES testapp_artist(id),
		record_label_id INTEGER NOT NULL REFERENCES testapp_recordlabel(id)
	)`,
	`CREATE TABLE testapp_song (
		id INTEGER PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		release_date DATE NOT NULL,
		album_id INTEGER NOT NULL REFERENCES testapp_album(id)
	)`,
	`CREATE TABLE testapp_song_artists (
		id INTEGER PRIMARY KEY,
		song_id INTEGER NOT NULL REFERENCES testapp_song(id),
		artist_id INTEGER NOT NULL REFERENCES testapp_artist(id)
	)`,
}

// EventModels returns models for event tags, events and event dates.
// Events hold many tags; event dates reference an optional event.
func EventModels() []*schema.Model {
	return []*schema.Model{
		{
			Type:   EventTag,
			Table:  "eventol_eventtag",
			Fields: []string{"id", "name", "created_at", "updated_at", "background", "message", "slug"},
		},
		{
			Type:   Event,
			Table:  "eventol_event",
			Fields: []string{"id", "name", "abstract", "limit_proposal_date", "registration_code", "email"},
			ManyToMany: []schema.ManyToMany{
				{
					Attribute:    "tags",
					Target:       EventTag,
					Through:      "eventol_event_tags",
					SourceColumn: "event_id",
					TargetColumn: "eventtag_id",
				},
			},
		},
		{
			Type:   EventDate,
			Table:  "eventol_eventdate",
			Fields: []string{"id", "date"},
			ForeignKeys: []schema.ForeignKey{
				{Attribute: "event", Column: "event_id", Target: Event},
			},
		},
	}
}

// EventRegistry returns a validated registry of EventModels.
func EventRegistry() *schema.Registry {
	reg := schema.NewRegistry().MustRegister(EventModels()...)
	if err := reg.Validate(); err != nil {
		panic(err)
	}
	return reg
}

// EventSQLite creates the event tables in SQLite. Timestamps are DATETIME
// columns so round trips go through the driver's time handling.
var EventSQLite = []string{
	`CREATE TABLE eventol_eventtag (
		id INTEGER PRIMARY KEY,
		name VARCHAR(50) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		background INTEGER NOT NULL,
		message TEXT,
		slug VARCHAR(50) NOT NULL
	)`,
	`CREATE TABLE eventol_event (
		id INTEGER PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		abstract TEXT,
		limit_proposal_date DATE,
		registration_code VARCHAR(36),
		email VARCHAR(254) NOT NULL
	)`,
	`CREATE TABLE eventol_event_tags (
		id INTEGER PRIMARY KEY,
		event_id INTEGER NOT NULL REFERENCES eventol_event(id),
		eventtag_id INTEGER NOT NULL REFERENCES eventol_eventtag(id)
	)`,
	`CREATE TABLE eventol_eventdate (
		id INTEGER PRIMARY KEY,
		date DATE NOT NULL,
		event_id INTEGER REFERENCES eventol_event(id)
	)`,
}
