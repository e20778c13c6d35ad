// Package journal stores journal entries in a primary document database with
// a local secondary. Every write probes the primary first; a create may land
// in either backend, so every read consults both.
package journal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/together/internal/backend"
	"github.com/MrSnakeDoc/together/internal/domain"
	"github.com/MrSnakeDoc/together/internal/logger"
)

// Backend is one physical home for entries.
type Backend interface {
	Name() string
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]domain.Entry, error)
	Get(ctx context.Context, id string) (domain.Entry, error)
	Insert(ctx context.Context, e domain.Entry) error
	// Replace overwrites an existing entry and returns domain.ErrNotFound
	// when there is none.
	Replace(ctx context.Context, e domain.Entry) error
	Delete(ctx context.Context, id string) error
}

const (
	DefaultTimeLayout = "15:04:05"
	DefaultDateLayout = "2006-01-02"
)

type Options struct {
	Primary   Backend // nil when no document database is configured
	Secondary Backend

	// Clock returns the current time in the display zone.
	Clock        func() time.Time
	DateLayout   string
	TimeLayout   string
	NewID        func() string
	ProbeTimeout time.Duration
	Logger       logger.Logger
}

type Store struct {
	primary      Backend
	secondary    Backend
	clock        func() time.Time
	dateLayout   string
	timeLayout   string
	newID        func() string
	probeTimeout time.Duration
	log          logger.Logger
}

func NewStore(opts Options) *Store {
	if opts.Secondary == nil {
		panic("journal: secondary backend is required")
	}
	s := &Store{
		primary:      opts.Primary,
		secondary:    opts.Secondary,
		clock:        opts.Clock,
		dateLayout:   opts.DateLayout,
		timeLayout:   opts.TimeLayout,
		newID:        opts.NewID,
		probeTimeout: opts.ProbeTimeout,
		log:          opts.Logger,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.dateLayout == "" {
		s.dateLayout = DefaultDateLayout
	}
	if s.timeLayout == "" {
		s.timeLayout = DefaultTimeLayout
	}
	if s.newID == nil {
		s.newID = newEntryID
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	return s
}

// newEntryID returns a time-ordered UUIDv7, unique even for entries created
// within the same second.
func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Status probes the primary backend.
func (s *Store) Status(ctx context.Context) backend.State {
	if s.primary == nil {
		return backend.State{Kind: backend.Unconfigured}
	}
	return backend.Probe(ctx, s.primary, s.probeTimeout)
}

// PrimaryName and SecondaryName identify the configured backends.
func (s *Store) PrimaryName() string {
	if s.primary == nil {
		return ""
	}
	return s.primary.Name()
}

func (s *Store) SecondaryName() string { return s.secondary.Name() }

func (s *Store) primaryStep(ctx context.Context, run func(ctx context.Context) (domain.Entry, error)) backend.Step[domain.Entry] {
	return backend.Step[domain.Entry]{Name: s.PrimaryName(), State: s.Status(ctx), Run: run}
}

func (s *Store) secondaryStep(run func(ctx context.Context) (domain.Entry, error)) backend.Step[domain.Entry] {
	return backend.Step[domain.Entry]{Name: s.secondary.Name(), State: backend.State{Kind: backend.Connected}, Run: run}
}

// ListEntries returns all entries ordered by key. With a reachable primary
// the result is the union of both backends, the primary copy winning on
// duplicate ids; otherwise the secondary alone is served.
func (s *Store) ListEntries(ctx context.Context, key domain.SortKey, descending bool) ([]domain.Entry, error) {
	var primary []domain.Entry
	state := s.Status(ctx)
	if state.Usable() {
		entries, err := s.primary.List(ctx)
		if err != nil {
			s.log.Warn("listing from primary failed, serving secondary only",
				logger.String("primary", s.primary.Name()),
				logger.Error(err))
		} else {
			primary = entries
		}
	} else if state.Kind == backend.Unreachable {
		s.log.Warn("primary unreachable, serving secondary only",
			logger.String("primary", s.primary.Name()),
			logger.Error(state.Err))
	}

	secondary, err := s.secondary.List(ctx)
	if err != nil {
		if primary == nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		s.log.Warn("listing from secondary failed, serving primary only",
			logger.String("secondary", s.secondary.Name()),
			logger.Error(err))
	}

	entries := merge(primary, secondary)
	sortEntries(entries, key, descending)
	return entries, nil
}

func merge(primary, secondary []domain.Entry) []domain.Entry {
	out := make([]domain.Entry, 0, len(primary)+len(secondary))
	seen := make(map[string]struct{}, len(primary))
	for _, e := range primary {
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	for _, e := range secondary {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		out = append(out, e)
	}
	return out
}

func sortEntries(entries []domain.Entry, key domain.SortKey, descending bool) {
	less := func(a, b domain.Entry) bool {
		switch key {
		case domain.SortByTitle:
			if c := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
				return c < 0
			}
		default:
			if a.Timestamp != b.Timestamp {
				return a.Timestamp < b.Timestamp
			}
		}
		return a.ID < b.ID
	}
	sort.Slice(entries, func(i, j int) bool {
		if descending {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

// GetEntry looks the id up in the primary, then in the secondary.
func (s *Store) GetEntry(ctx context.Context, id string) (domain.Entry, error) {
	return backend.Fallback(ctx, s.log, "get entry",
		s.primaryStep(ctx, func(ctx context.Context) (domain.Entry, error) { return s.primary.Get(ctx, id) }),
		s.secondaryStep(func(ctx context.Context) (domain.Entry, error) { return s.secondary.Get(ctx, id) }),
	)
}

// CreateEntry validates in, stamps a new entry and stores it in the first
// backend that accepts it.
func (s *Store) CreateEntry(ctx context.Context, in domain.EntryInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	e := domain.Entry{ID: s.newID()}
	e.Apply(in)
	e.Stamp(s.clock(), s.dateLayout, s.timeLayout)

	insert := func(b Backend) func(ctx context.Context) (domain.Entry, error) {
		return func(ctx context.Context) (domain.Entry, error) { return e, b.Insert(ctx, e) }
	}
	stored, err := backend.Fallback(ctx, s.log, "create entry",
		s.primaryStep(ctx, insert(s.primary)),
		s.secondaryStep(insert(s.secondary)),
	)
	if err != nil {
		return "", err
	}

	s.log.Info("journal entry created",
		logger.String("id", stored.ID),
		logger.String("author", stored.Author))
	return stored.ID, nil
}

// UpdateEntry overwrites the editable fields and re-stamps the entry with
// the current time whether or not anything changed.
func (s *Store) UpdateEntry(ctx context.Context, id string, in domain.EntryInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	replace := func(b Backend) func(ctx context.Context) (domain.Entry, error) {
		return func(ctx context.Context) (domain.Entry, error) {
			e, err := b.Get(ctx, id)
			if err != nil {
				return domain.Entry{}, err
			}
			e.Apply(in)
			e.Stamp(s.clock(), s.dateLayout, s.timeLayout)
			return e, b.Replace(ctx, e)
		}
	}
	if _, err := backend.Fallback(ctx, s.log, "update entry",
		s.primaryStep(ctx, replace(s.primary)),
		s.secondaryStep(replace(s.secondary)),
	); err != nil {
		return err
	}

	s.log.Info("journal entry updated", logger.String("id", id))
	return nil
}

// DeleteEntry removes the entry from whichever backend holds it.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	remove := func(b Backend) func(ctx context.Context) (domain.Entry, error) {
		return func(ctx context.Context) (domain.Entry, error) { return domain.Entry{}, b.Delete(ctx, id) }
	}
	if _, err := backend.Fallback(ctx, s.log, "delete entry",
		s.primaryStep(ctx, remove(s.primary)),
		s.secondaryStep(remove(s.secondary)),
	); err != nil {
		return err
	}

	s.log.Info("journal entry deleted", logger.String("id", id))
	return nil
}

// CountEntries is the size of the merged listing.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	entries, err := s.ListEntries(ctx, domain.SortByTimestamp, false)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
