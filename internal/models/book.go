package models

import "time"

// BookStatus is the loan-lifecycle availability of a catalog record.
type BookStatus string

const (
	BookAvailable   BookStatus = "available"
	BookBorrowed    BookStatus = "borrowed"
	BookMaintenance BookStatus = "maintenance"
)

// BookRecord is a catalog entry as seen by the chat core. The chat core never mutates it.
type BookRecord struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Category    string     `json:"category"`
	Status      BookStatus `json:"status"`
	CoverURL    string     `json:"cover_url,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
