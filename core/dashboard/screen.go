package dashboard

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/listing"
	"github.com/trezcool/masomo-dashboard/core/resource"
)

const tempIDPrefix = "tmp-"

// Screen is the list view of one resource.
// Remote calls are made without holding the lock; their results are applied one at a time.
type Screen struct {
	res    resource.Resource
	client Client
	logger core.Logger

	mu     sync.Mutex
	ctrl   *listing.Controller
	gen    uint64 // bumped by every Refresh and applied mutation
	loaded bool
}

func NewScreen(res resource.Resource, client Client, logger core.Logger, pageSize int) *Screen {
	if res.PageSize > 0 {
		pageSize = res.PageSize
	}
	ctrl := listing.NewController(pageSize, res.SearchableFields...)
	if res.DefaultSort != "" {
		ctrl.SetSort(res.DefaultSort)
	}
	return &Screen{
		res:    res,
		client: client,
		logger: logger,
		ctrl:   ctrl,
	}
}

func (s *Screen) Resource() resource.Resource {
	return s.res
}

// Loaded reports whether a Refresh has succeeded at least once.
func (s *Screen) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Refresh fetches the whole collection and replaces the screen items.
// A response arriving after a newer Refresh started, or after a mutation was applied, is dropped.
func (s *Screen) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	records, err := s.client.List(ctx, s.res.Path)
	if err != nil {
		return errors.Wrapf(err, "listing %s", s.res.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("stale refresh dropped", map[string]interface{}{"resource": s.res.Name, "gen": gen})
		return nil
	}
	s.ctrl.Initialize(records)
	s.loaded = true
	return nil
}

func (s *Screen) View() listing.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.View()
}

func (s *Screen) Search(term string) listing.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.SetSearchTerm(term)
	return s.ctrl.View()
}

// Sort sorts by `key`, toggling the direction when `key` is already the sort key.
func (s *Screen) Sort(key string) listing.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.SetSort(key)
	return s.ctrl.View()
}

// SortBy sorts by `key` in the given direction.
func (s *Screen) SortBy(key string, dir listing.Direction) listing.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, _ := s.ctrl.Sorting(); cur != key {
		s.ctrl.SetSort(key)
	}
	if _, cur := s.ctrl.Sorting(); cur != dir {
		s.ctrl.SetSort(key)
	}
	return s.ctrl.View()
}

func (s *Screen) Page(n int) listing.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.SetPage(n)
	return s.ctrl.View()
}

func (s *Screen) Get(id string) (listing.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Get(id)
}

// Delete removes the record remotely then locally. A record already gone remotely is removed all the same.
func (s *Screen) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, s.res.Path, id); err != nil {
		if !isNotFound(err) {
			return errors.Wrapf(err, "deleting %s %s", s.res.Name, id)
		}
		s.logger.Info("record already deleted", map[string]interface{}{"resource": s.res.Name, "id": id})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.ctrl.DeleteByID(id)
	return nil
}

// Create shows `rec` under a temporary id until the server answers,
// then swaps it for the server record. The temporary record is dropped on failure.
func (s *Screen) Create(ctx context.Context, rec listing.Record) (listing.Record, error) {
	tempID := tempIDPrefix + uuid.New().String()
	pending := rec.Copy()
	pending[listing.IDField] = tempID

	s.mu.Lock()
	s.ctrl.Upsert(pending)
	s.mu.Unlock()

	body := rec.Copy()
	delete(body, listing.IDField)
	created, err := s.client.Create(ctx, s.res.Path, body)
	if err == nil && !created.HasID() {
		err = ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.DeleteByID(tempID)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", s.res.Name)
	}
	s.gen++
	s.ctrl.Upsert(created)
	return created.Copy(), nil
}

// Update replaces the record remotely then patches it in place.
func (s *Screen) Update(ctx context.Context, id string, rec listing.Record) (listing.Record, error) {
	body := rec.Copy()
	body[listing.IDField] = id
	updated, err := s.client.Update(ctx, s.res.Path, id, body)
	if err != nil {
		return nil, errors.Wrapf(err, "updating %s %s", s.res.Name, id)
	}
	if !updated.HasID() {
		return nil, errors.Wrapf(ErrMissingID, "updating %s %s", s.res.Name, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.ctrl.Upsert(updated)
	return updated.Copy(), nil
}
