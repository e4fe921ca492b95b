// Package seed loads accounts and catalog records from a JSON file at startup.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"libchat/internal/catalog"
	"libchat/internal/directory"
	"libchat/internal/logger"
	"libchat/internal/models"
)

// File is the on-disk seed format.
type File struct {
	Users []User              `json:"users"`
	Books []models.BookRecord `json:"books"`
}

// User is one seeded account, matched by username.
type User struct {
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role"`
}

// Result counts what Apply wrote.
type Result struct {
	Users int
	Books int
}

// Load reads a seed file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return &f, nil
}

// Apply syncs every user and, only while the catalog is empty, inserts the books.
// Running it again on every start is safe.
func Apply(ctx context.Context, f *File, users *directory.Service, books *catalog.SQLSource, log *logger.Logger) (Result, error) {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithModule("seed")

	var res Result
	for _, u := range f.Users {
		if _, err := users.SyncUser(ctx, u.Username, u.DisplayName, u.Role); err != nil {
			return res, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		res.Users++
	}

	existing, err := books.Count(ctx)
	if err != nil {
		return res, err
	}
	if existing > 0 {
		log.InfoContext(ctx, "catalog already populated, skipping books", "books", existing)
		return res, nil
	}
	for _, b := range f.Books {
		if _, err := books.AddBook(ctx, b); err != nil {
			return res, fmt.Errorf("seed book %q: %w", b.Title, err)
		}
		res.Books++
	}
	log.InfoContext(ctx, "seed applied", "users", res.Users, "books", res.Books)
	return res, nil
}
