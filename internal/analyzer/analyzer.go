package analyzer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/restclient"
)

// DefaultTicketConcurrency bounds parallel issue-tracker lookups.
const DefaultTicketConcurrency = 4

// SourceControl fetches pull request details.
type SourceControl interface {
	FetchPullRequest(ctx context.Context, ref release.Ref) (*release.PullRequest, error)
}

// IssueTracker fetches a single ticket with its acceptance criteria.
type IssueTracker interface {
	FetchTicket(ctx context.Context, id string) (*release.Ticket, error)
}

// Analyzer builds a ChangeContext from a pull request reference.
type Analyzer struct {
	scm         SourceControl
	tracker     IssueTracker
	ignore      []glob.Glob
	concurrency int
	logger      *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer) error

// WithIssueTracker enables requirement lookup. Without one, a context
// carries ticket ids but no acceptance criteria.
func WithIssueTracker(t IssueTracker) Option {
	return func(a *Analyzer) error {
		a.tracker = t
		return nil
	}
}

// WithIgnore drops files matching any of the glob patterns before classification.
func WithIgnore(patterns ...string) Option {
	return func(a *Analyzer) error {
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return fmt.Errorf("compile ignore pattern %q: %w", p, err)
			}
			a.ignore = append(a.ignore, g)
		}
		return nil
	}
}

// WithTicketConcurrency sets the number of parallel ticket lookups.
func WithTicketConcurrency(n int) Option {
	return func(a *Analyzer) error {
		if n < 1 {
			return fmt.Errorf("ticket concurrency must be >= 1, got %d", n)
		}
		a.concurrency = n
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) error {
		a.logger = l
		return nil
	}
}

// New returns an Analyzer backed by scm.
func New(scm SourceControl, opts ...Option) (*Analyzer, error) {
	if scm == nil {
		return nil, fmt.Errorf("analyzer: source control is required")
	}
	a := &Analyzer{
		scm:         scm,
		concurrency: DefaultTicketConcurrency,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Analyze gathers the pull request, its linked tickets and the file
// classification.
func (a *Analyzer) Analyze(ctx context.Context, ref release.Ref) (*release.ChangeContext, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	pr, err := a.scm.FetchPullRequest(ctx, ref)
	if err != nil {
		a.logger.ErrorContext(ctx, "fetch pull request failed", "pr_number", ref.Number, "error", err)
		return nil, fmt.Errorf("fetch pull request %s: %w", ref, err)
	}
	a.logger.InfoContext(ctx, "pull request retrieved", "pr_number", ref.Number, "files", len(pr.Files))

	pr.Files = a.filter(pr.Files)

	ids := ExtractTicketIDs(pr.Title, pr.Body)
	a.logger.InfoContext(ctx, "tickets extracted", "pr_number", ref.Number, "tickets", ids)

	tickets, err := a.fetchTickets(ctx, ids)
	if err != nil {
		return nil, err
	}

	var criteria []string
	for _, t := range tickets {
		criteria = append(criteria, t.AcceptanceCriteria...)
	}

	return &release.ChangeContext{
		Ref:                ref,
		PullRequest:        *pr,
		Classification:     Classify(pr.Files),
		TicketIDs:          ids,
		Tickets:            tickets,
		AcceptanceCriteria: Dedupe(criteria),
		TotalChanges:       pr.TotalAdditions() + pr.TotalDeletions(),
	}, nil
}

func (a *Analyzer) filter(files []release.FileChange) []release.FileChange {
	if len(a.ignore) == 0 {
		return files
	}
	kept := make([]release.FileChange, 0, len(files))
outer:
	for _, f := range files {
		for _, g := range a.ignore {
			if g.Match(f.Filename) {
				continue outer
			}
		}
		kept = append(kept, f)
	}
	return kept
}

// fetchTickets looks tickets up in parallel and keeps the order of ids.
// Missing or unreadable tickets are skipped. Rejected credentials and rate
// limiting fail the whole lookup since every other ticket would fail too.
func (a *Analyzer) fetchTickets(ctx context.Context, ids []string) ([]release.Ticket, error) {
	if a.tracker == nil || len(ids) == 0 {
		return nil, nil
	}

	results := make([]*release.Ticket, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			t, err := a.tracker.FetchTicket(gctx, id)
			switch {
			case err == nil:
				results[i] = t
			case restclient.IsAuthFailure(err), restclient.IsRateLimited(err):
				return fmt.Errorf("fetch ticket %s: %w", id, err)
			case restclient.IsNotFound(err):
				a.logger.WarnContext(gctx, "ticket not found", "ticket_id", id)
			default:
				a.logger.WarnContext(gctx, "skipping ticket", "ticket_id", id, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch tickets: %w", err)
	}

	var tickets []release.Ticket
	for _, t := range results {
		if t != nil {
			tickets = append(tickets, *t)
		}
	}
	return tickets, nil
}

var ticketPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]*-\d+)\b`)

// ExtractTicketIDs finds issue keys such as PROJ-123 in the title and body,
// deduplicated in order of first appearance.
func ExtractTicketIDs(title, body string) []string {
	return Dedupe(ticketPattern.FindAllString(title+"\n"+body, -1))
}

// Dedupe removes repeated strings, keeping first appearances in order.
func Dedupe(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
