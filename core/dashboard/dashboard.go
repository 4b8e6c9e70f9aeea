// Package dashboard holds the list screens and ticket threads of one signed-in admin.
package dashboard

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/resource"
	"github.com/trezcool/masomo-dashboard/core/ticket"
)

type (
	Options struct {
		Client   Client
		Poster   ticket.Poster
		Source   ticket.Source // feeds ticket threads; nil: threads only change on Reply
		Logger   core.Logger
		PageSize int
	}

	// ScreenSummary is one metrics card of the dashboard home.
	ScreenSummary struct {
		Resource      string `json:"resource"`
		Title         string `json:"title"`
		TotalCount    int    `json:"total_count"`
		FilteredCount int    `json:"filtered_count"`
		Loaded        bool   `json:"loaded"`
	}

	Dashboard struct {
		opts Options

		mu      sync.Mutex
		closed  bool
		screens map[string]*Screen
		threads map[string]*ticket.Thread
	}
)

func New(opts Options) *Dashboard {
	return &Dashboard{
		opts:    opts,
		screens: make(map[string]*Screen),
		threads: make(map[string]*ticket.Thread),
	}
}

// Screen returns the screen of the named resource, creating it on first use.
// A new screen is empty until refreshed.
func (d *Dashboard) Screen(name string) (*Screen, error) {
	res, err := resource.Get(name)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	scr, ok := d.screens[res.Name]
	if !ok {
		scr = NewScreen(res, d.opts.Client, d.opts.Logger, d.opts.PageSize)
		d.screens[res.Name] = scr
	}
	return scr, nil
}

// LoadedScreen returns the named screen, refreshed if it never was (or if `refresh` is set).
func (d *Dashboard) LoadedScreen(ctx context.Context, name string, refresh bool) (*Screen, error) {
	scr, err := d.Screen(name)
	if err != nil {
		return nil, err
	}
	if refresh || !scr.Loaded() {
		if err = scr.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return scr, nil
}

// Thread returns the message thread of a ticket, started on first use.
func (d *Dashboard) Thread(ctx context.Context, ticketID string) (*ticket.Thread, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if th, ok := d.threads[ticketID]; ok {
		return th, nil
	}

	th := ticket.NewThread(ticketID, d.opts.Poster, d.opts.Logger, d.opts.PageSize)
	if d.opts.Source != nil {
		// the thread outlives the request that opened it
		if err := th.Start(context.Background(), d.opts.Source); err != nil {
			return nil, errors.Wrapf(err, "starting thread of ticket %s", ticketID)
		}
	}
	d.threads[ticketID] = th
	return th, nil
}

// Summary returns the counts of every opened screen, by resource name.
func (d *Dashboard) Summary() []ScreenSummary {
	d.mu.Lock()
	screens := make(map[string]*Screen, len(d.screens))
	for name, scr := range d.screens {
		screens[name] = scr
	}
	d.mu.Unlock()

	summary := make([]ScreenSummary, 0, len(screens))
	for _, name := range resource.Names() {
		scr, ok := screens[name]
		if !ok {
			continue
		}
		view := scr.View()
		summary = append(summary, ScreenSummary{
			Resource:      name,
			Title:         scr.Resource().Title,
			TotalCount:    view.TotalCount,
			FilteredCount: view.FilteredCount,
			Loaded:        scr.Loaded(),
		})
	}
	return summary
}

// Close stops every ticket thread and drops all screens. A closed Dashboard cannot be reused.
func (d *Dashboard) Close() {
	d.mu.Lock()
	threads := d.threads
	d.closed = true
	d.screens = make(map[string]*Screen)
	d.threads = make(map[string]*ticket.Thread)
	d.mu.Unlock()

	for _, th := range threads {
		th.Stop()
	}
}
