// Package catalog answers keyword searches against the book catalog.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"libchat/internal/logger"
	"libchat/internal/models"
	"libchat/internal/storage"
)

// Source is the catalog data collaborator. Results are in catalog order (ascending id).
type Source interface {
	SearchBooks(ctx context.Context, keyword string) ([]models.BookRecord, error)
}

// Lookup wraps a Source with the chat core's rules: blank keywords match nothing and
// source failures surface as an empty result.
type Lookup struct {
	source Source
	log    *logger.Logger
}

// NewLookup builds a Lookup. log may be nil.
func NewLookup(source Source, log *logger.Logger) *Lookup {
	if log == nil {
		log = logger.Discard()
	}
	return &Lookup{source: source, log: log.WithModule("catalog")}
}

// Search returns books whose title, author or category contains keywords, ignoring case.
func (l *Lookup) Search(ctx context.Context, keywords string) []models.BookRecord {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" || l.source == nil {
		return []models.BookRecord{}
	}
	books, err := l.source.SearchBooks(ctx, keywords)
	if err != nil {
		l.log.WithError(err).WarnContext(ctx, "catalog search failed", "keywords", keywords)
		return []models.BookRecord{}
	}
	if books == nil {
		return []models.BookRecord{}
	}
	return books
}

// SQLSource searches the books table.
type SQLSource struct {
	db *sql.DB
	// fold is the SQL function applied to columns; lower is its Go counterpart for the keyword.
	fold  string
	lower func(string) string
}

// NewSQLSource builds a SQL-backed catalog source. On SQLite columns go through the
// registered fold() function; MySQL's LOWER() is Unicode-aware under utf8mb4.
func NewSQLSource(db *sql.DB) *SQLSource {
	if storage.IsSQLite(db) {
		return &SQLSource{db: db, fold: "fold", lower: storage.Fold}
	}
	return &SQLSource{db: db, fold: "LOWER", lower: strings.ToLower}
}

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// SearchBooks runs an OR-combined substring match on title, author and category.
func (s *SQLSource) SearchBooks(ctx context.Context, keyword string) ([]models.BookRecord, error) {
	pattern := "%" + likeEscaper.Replace(s.lower(keyword)) + "%"
	query := fmt.Sprintf(
		`SELECT id, title, author, category, status, cover_url, description, created_at
		 FROM books
		 WHERE %[1]s(title) LIKE ? ESCAPE '!'
		    OR %[1]s(author) LIKE ? ESCAPE '!'
		    OR %[1]s(category) LIKE ? ESCAPE '!'
		 ORDER BY id ASC`, s.fold)
	rows, err := s.db.QueryContext(ctx, query, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()

	var books []models.BookRecord
	for rows.Next() {
		var (
			book   models.BookRecord
			status string
		)
		if err := rows.Scan(&book.ID, &book.Title, &book.Author, &book.Category, &status,
			&book.CoverURL, &book.Description, &book.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		book.Status = models.BookStatus(status)
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// Count returns the number of catalog records.
func (s *SQLSource) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

// AddBook inserts a catalog record; the loan lifecycle owns status changes afterwards.
func (s *SQLSource) AddBook(ctx context.Context, book models.BookRecord) (*models.BookRecord, error) {
	if strings.TrimSpace(book.Title) == "" {
		return nil, errors.New("title is required")
	}
	if book.Status == "" {
		book.Status = models.BookAvailable
	}
	book.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO books (title, author, category, status, cover_url, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		book.Title, book.Author, book.Category, string(book.Status), book.CoverURL, book.Description, book.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("book id: %w", err)
	}
	book.ID = id
	return &book, nil
}

// MemorySource is an in-process catalog using full Unicode case folding.
type MemorySource struct {
	mu     sync.RWMutex
	books  []models.BookRecord
	nextID int64
}

// NewMemorySource builds a catalog seeded with books, assigning ids where missing.
func NewMemorySource(books ...models.BookRecord) *MemorySource {
	src := &MemorySource{}
	for _, b := range books {
		src.Add(b)
	}
	return src
}

// Add appends a book in catalog order.
func (m *MemorySource) Add(book models.BookRecord) models.BookRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if book.ID == 0 {
		m.nextID++
		book.ID = m.nextID
	} else if book.ID > m.nextID {
		m.nextID = book.ID
	}
	if book.Status == "" {
		book.Status = models.BookAvailable
	}
	m.books = append(m.books, book)
	return book
}

// SearchBooks implements Source.
func (m *MemorySource) SearchBooks(_ context.Context, keyword string) ([]models.BookRecord, error) {
	needle := storage.Fold(keyword)

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.BookRecord
	for _, b := range m.books {
		if strings.Contains(storage.Fold(b.Title), needle) ||
			strings.Contains(storage.Fold(b.Author), needle) ||
			strings.Contains(storage.Fold(b.Category), needle) {
			out = append(out, b)
		}
	}
	return out, nil
}
