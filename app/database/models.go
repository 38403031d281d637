package database

import (
	"time"
)

// Media represents a news outlet. Created by the ingestion pipeline,
// never deleted by this service.
type Media struct {
	ID   int64
	Name string
	URL  string
}

// Feed represents a syndication feed belonging to a media outlet.
type Feed struct {
	ID          int64
	URL         string
	Name        string
	MediaID     *int64
	LastFetched *time.Time
}

// File is an opaque binary payload (markdown content or PNG image)
// with metadata. Deleted only once no live owner references it.
type File struct {
	ID          int64
	Filename    string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// News is a single syndicated article. ContentFileID and ImageFileID
// optionally reference a File each.
type News struct {
	ID            int64
	Link          string
	Title         string
	Summary       string
	AITitle       string
	AISummary     string
	PublishedAt   *time.Time
	CreatedAt     time.Time
	MediaID       *int64
	FeedID        *int64
	ContentFileID *int64
	ImageFileID   *int64
}

// ChosenNews records a selection batch. NewsIDs is a soft reference:
// it documents a historical selection and is never kept consistent
// with the news table.
type ChosenNews struct {
	ID       int64
	ChosenAt time.Time
	NewsIDs  []int64
}

// InstagramPost is a generated post for a selected news item. NewsID
// carries no foreign key constraint and may dangle after an external
// delete of the news row.
type InstagramPost struct {
	ID                int64
	ChosenNewsID      *int64
	NewsID            *int64
	IGTitle           string
	IGCaption         string
	IntegratedImageID *int64
}

// Published records that a post went live.
type Published struct {
	ID              int64
	NewsID          *int64
	InstagramPostID *int64
	PublishedAt     time.Time
}

// Story is an Instagram story derived from a published post.
type Story struct {
	ID          int64
	Title       string
	Content     string
	ImageFileID *int64
	PublishedID int64
}
