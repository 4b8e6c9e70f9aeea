// Package listing keeps a searchable, sortable and paginated view over a list of records,
// patched in place as create, update and delete calls resolve.
//
// A Controller is not safe for concurrent use: callers apply one state transition at a time.
package listing

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
)

const DefaultPageSize = 10

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "asc":
		*d = Ascending
	case "desc":
		*d = Descending
	default:
		return errors.Errorf("invalid sort direction %q", text)
	}
	return nil
}

// View is a read-only snapshot of one page of a list.
type View struct {
	PageItems     []Record  `json:"page_items"`
	TotalCount    int       `json:"total_count"`
	FilteredCount int       `json:"filtered_count"`
	TotalPages    int       `json:"total_pages"`
	CurrentPage   int       `json:"current_page"`
	PageSize      int       `json:"page_size"`
	SearchTerm    string    `json:"search_term"`
	SortKey       string    `json:"sort_key,omitempty"`
	SortDirection Direction `json:"sort_direction"`
}

type Controller struct {
	items            []Record
	searchableFields []string
	pageSize         int

	searchTerm  string
	sortKey     string
	sortDir     Direction
	currentPage int
}

// NewController returns an empty Controller. searchableFields are the record fields the search term is matched against.
func NewController(pageSize int, searchableFields ...string) *Controller {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	fields := make([]string, len(searchableFields))
	copy(fields, searchableFields)
	return &Controller{
		searchableFields: fields,
		pageSize:         pageSize,
		currentPage:      1,
	}
}

// Initialize replaces all items and goes back to the first page.
// Records sharing an id keep the position of the first one and the value of the last one.
func (c *Controller) Initialize(items []Record) {
	c.items = make([]Record, 0, len(items))
	positions := make(map[string]int, len(items))
	for _, r := range items {
		id := r.ID()
		if i, ok := positions[id]; ok {
			c.items[i] = r.Copy()
			continue
		}
		positions[id] = len(c.items)
		c.items = append(c.items, r.Copy())
	}
	c.currentPage = 1
}

// SetSearchTerm filters the list on `term` and goes back to the first page.
func (c *Controller) SetSearchTerm(term string) {
	c.searchTerm = core.CleanString(term)
	c.currentPage = 1
}

// SetSort sorts on `key`, ascending; sorting again on the same key flips the direction.
func (c *Controller) SetSort(key string) {
	if key == c.sortKey {
		if c.sortDir == Ascending {
			c.sortDir = Descending
		} else {
			c.sortDir = Ascending
		}
	} else {
		c.sortKey = key
		c.sortDir = Ascending
	}
	c.clampPage(len(c.filtered()))
}

// SetPage moves to page `n`, clamped to the available pages.
func (c *Controller) SetPage(n int) {
	c.currentPage = n
	c.clampPage(len(c.filtered()))
}

// DeleteByID removes the record with the given id. Unknown ids are ignored.
func (c *Controller) DeleteByID(id interface{}) {
	if i := c.indexOf(FormatID(id)); i >= 0 {
		items := make([]Record, 0, len(c.items)-1)
		items = append(items, c.items[:i]...)
		c.items = append(items, c.items[i+1:]...)
	}
	c.clampPage(len(c.filtered()))
}

// Upsert replaces the record having the same id in place, or appends it.
func (c *Controller) Upsert(r Record) {
	if i := c.indexOf(r.ID()); i >= 0 {
		c.items[i] = r.Copy()
	} else {
		c.items = append(c.items, r.Copy())
	}
	c.clampPage(len(c.filtered()))
}

// Sorting returns the current sort key and direction.
func (c *Controller) Sorting() (string, Direction) {
	return c.sortKey, c.sortDir
}

// Len returns the number of items.
func (c *Controller) Len() int {
	return len(c.items)
}

// Get returns a copy of the record with the given id.
func (c *Controller) Get(id interface{}) (Record, bool) {
	if i := c.indexOf(FormatID(id)); i >= 0 {
		return c.items[i].Copy(), true
	}
	return nil, false
}

// View computes the current page.
func (c *Controller) View() View {
	filtered := c.filtered()
	sorted := c.sorted(filtered)
	totalPages := c.totalPages(len(filtered))
	page := clamp(c.currentPage, 1, totalPages)

	start := (page - 1) * c.pageSize
	end := start + c.pageSize
	if start > len(sorted) {
		start = len(sorted)
	}
	if end > len(sorted) {
		end = len(sorted)
	}
	pageItems := make([]Record, 0, end-start)
	for _, r := range sorted[start:end] {
		pageItems = append(pageItems, r.Copy())
	}

	return View{
		PageItems:     pageItems,
		TotalCount:    len(c.items),
		FilteredCount: len(filtered),
		TotalPages:    totalPages,
		CurrentPage:   page,
		PageSize:      c.pageSize,
		SearchTerm:    c.searchTerm,
		SortKey:       c.sortKey,
		SortDirection: c.sortDir,
	}
}

func (c *Controller) indexOf(id string) int {
	for i, r := range c.items {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// filtered never returns c.items itself.
func (c *Controller) filtered() []Record {
	term := strings.ToLower(c.searchTerm)
	res := make([]Record, 0, len(c.items))
	for _, r := range c.items {
		if term == "" || c.matches(r, term) {
			res = append(res, r)
		}
	}
	return res
}

func (c *Controller) matches(r Record, term string) bool {
	for _, fld := range c.searchableFields {
		if strings.Contains(strings.ToLower(r.Field(fld)), term) {
			return true
		}
	}
	return false
}

func (c *Controller) sorted(records []Record) []Record {
	if c.sortKey == "" {
		return records
	}
	key := c.sortKey
	sort.SliceStable(records, func(i, j int) bool {
		if c.sortDir == Descending {
			return less(records[j][key], records[i][key])
		}
		return less(records[i][key], records[j][key])
	})
	return records
}

func (c *Controller) totalPages(filteredCount int) int {
	pages := (filteredCount + c.pageSize - 1) / c.pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

func (c *Controller) clampPage(filteredCount int) {
	c.currentPage = clamp(c.currentPage, 1, c.totalPages(filteredCount))
}

func clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
