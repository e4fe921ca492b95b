// Package router turns a patron message into a bot reply: human handoff, or intent
// classification followed by catalog lookup.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"libchat/internal/botlog"
	"libchat/internal/errtrack"
	"libchat/internal/logger"
	"libchat/internal/metrics"
	"libchat/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// historyWindow is how many prior messages are handed to the classifier.
const historyWindow = 6

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("message must not be empty")

// Classifier never fails; failures come back as models.FallbackIntent.
type Classifier interface {
	Analyze(ctx context.Context, message, history string) models.IntentResult
}

// Catalog never fails; misses and outages come back empty.
type Catalog interface {
	Search(ctx context.Context, keywords string) []models.BookRecord
}

// Request is one inbound patron message. UserID 0 is anonymous and is not logged.
type Request struct {
	Message  string
	UserID   int64
	UserName string
	Image    string
}

// Reply is what the patron sees. Handoff asks the client to open a support session next.
type Reply struct {
	Message string              `json:"message"`
	Books   []models.BookRecord `json:"books"`
	Handoff bool                `json:"handoff"`
	Intent  models.Intent       `json:"intent,omitempty"`
}

// Router is the conversation router.
type Router struct {
	classifier Classifier
	catalog    Catalog
	log        botlog.Store
	logger     *logger.Logger
	metrics    *metrics.Metrics
	phrases    []string
}

// New builds a Router. logger and m may be nil.
func New(classifier Classifier, catalog Catalog, store botlog.Store, log *logger.Logger, m *metrics.Metrics) *Router {
	if log == nil {
		log = logger.Discard()
	}
	phrases := make([]string, len(handoffPhrases))
	for i, p := range handoffPhrases {
		phrases[i] = fold(p)
	}
	return &Router{
		classifier: classifier,
		catalog:    catalog,
		log:        store,
		logger:     log.WithModule("router"),
		metrics:    m,
		phrases:    phrases,
	}
}

func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// IsHandoff reports whether text asks for a human.
func (r *Router) IsHandoff(text string) bool {
	folded := fold(text)
	for _, p := range r.phrases {
		if strings.Contains(folded, p) {
			return true
		}
	}
	return false
}

// Route answers a patron message. Only ErrEmptyMessage is returned; collaborator failures
// and panics become BusyReply.
func (r *Router) Route(ctx context.Context, req Request) (reply Reply, err error) {
	text := strings.TrimSpace(req.Message)
	if text == "" && req.Image == "" {
		return Reply{}, ErrEmptyMessage
	}

	defer func() {
		if rec := recover(); rec != nil {
			perr := fmt.Errorf("router panic: %v", rec)
			r.logger.WithError(perr).ErrorContext(ctx, "conversation routing panicked", "user_id", req.UserID)
			errtrack.CaptureException(ctx, perr)
			reply, err = busy(), nil
		}
	}()

	logged := req.UserID > 0
	var history string
	if logged {
		if req.UserName != "" {
			if err := r.log.SetUserName(ctx, req.UserID, req.UserName); err != nil {
				r.logger.WithError(err).WarnContext(ctx, "record user name failed", "user_id", req.UserID)
			}
		}
		history = r.history(ctx, req.UserID)
		if _, err := r.log.Append(ctx, req.UserID, models.ChatMessage{
			Sender: models.SenderUser,
			Text:   text,
			Image:  req.Image,
		}); err != nil {
			r.logger.WithError(err).ErrorContext(ctx, "append inbound message failed", "user_id", req.UserID)
			errtrack.CaptureException(ctx, err)
			return busy(), nil
		}
	}

	reply = r.answer(ctx, text, history)

	if logged {
		if _, err := r.log.Append(ctx, req.UserID, models.ChatMessage{
			Sender: models.SenderBot,
			Text:   reply.Message,
		}); err != nil {
			r.logger.WithError(err).WarnContext(ctx, "append bot reply failed", "user_id", req.UserID)
			errtrack.CaptureException(ctx, err)
		}
	}
	return reply, nil
}

func (r *Router) answer(ctx context.Context, text, history string) Reply {
	if r.IsHandoff(text) {
		r.metrics.RecordHandoff()
		return Reply{Message: HandoffReply, Books: []models.BookRecord{}, Handoff: true}
	}

	result := r.classifier.Analyze(ctx, text, history)
	r.metrics.RecordReply(string(result.Intent))
	reply := Reply{Books: []models.BookRecord{}, Intent: result.Intent}

	switch result.Intent {
	case models.IntentSearchBook, models.IntentCheckStatus:
		books := r.catalog.Search(ctx, result.Keywords)
		switch {
		case len(books) == 0:
			reply.Message = notFoundReply(result.Keywords)
		case result.Intent == models.IntentCheckStatus:
			reply.Message = statusReply(books[0])
			reply.Books = books
		default:
			reply.Message = searchReply(len(books), result.Keywords)
			reply.Books = books
		}
	case models.IntentLibraryInfo:
		reply.Message = result.Response
		if reply.Message == "" {
			reply.Message = LibraryInfo
		}
	default:
		reply.Message = result.Response
	}
	return reply
}

func (r *Router) history(ctx context.Context, userID int64) string {
	recent, err := r.log.Recent(ctx, userID, historyWindow)
	if err != nil {
		r.logger.WithError(err).WarnContext(ctx, "load recent history failed", "user_id", userID)
		return ""
	}
	var b strings.Builder
	for _, m := range recent {
		if m.Text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Text)
	}
	return b.String()
}

// StaffReply posts a librarian's answer into a user's bot-channel log.
func (r *Router) StaffReply(ctx context.Context, userID int64, text, staffName string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}
	if userID <= 0 {
		return models.ChatMessage{}, botlog.ErrInvalidUser
	}
	msg, err := r.log.Append(ctx, userID, models.ChatMessage{
		Sender:    models.SenderBot,
		Text:      text,
		StaffName: strings.TrimSpace(staffName),
	})
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("append staff reply: %w", err)
	}
	r.logger.InfoContext(ctx, "staff replied on bot channel", "user_id", userID, "staff", staffName)
	return msg, nil
}

func busy() Reply {
	return Reply{Message: BusyReply, Books: []models.BookRecord{}}
}
