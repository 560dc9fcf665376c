package lesson

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/pot-code/samba-client/internal/infrastructure/eventloop"
	"go.uber.org/zap"
)

var (
	// ErrStaleResult a newer fetch for the same category superseded this one
	ErrStaleResult = errors.New("fetch superseded by a newer refresh")
	// ErrCacheClosed .
	ErrCacheClosed = errors.New("lesson cache is closed")
)

// sort orders understood by WithOrder
const (
	OrderNone     = "none"
	OrderSchedule = "schedule"
	OrderTitle    = "title"
)

// CacheOption .
type CacheOption func(*Cache)

// WithOrder sorts every published list, OrderNone keeps catalog order
func WithOrder(order string) CacheOption {
	return func(c *Cache) {
		switch order {
		case OrderNone:
			c.less = nil
		case OrderTitle:
			c.less = func(a, b Item) bool {
				if a.Title != b.Title {
					return a.Title < b.Title
				}
				return a.ID < b.ID
			}
		default:
			c.less = byScheduleThenID
		}
	}
}

// WithFetchTimeout bounds a single catalog query
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func byScheduleThenID(a, b Item) bool {
	if a.ScheduledTime != b.ScheduledTime {
		return a.ScheduledTime < b.ScheduledTime
	}
	return a.ID < b.ID
}

type slot struct {
	list       *ObservableList
	items      []Item
	generation uint64
	loading    bool
	err        error
}

func (s *slot) snapshot(category Category) Snapshot {
	return Snapshot{
		Category:   category,
		Items:      s.items,
		Loading:    s.loading,
		Err:        s.err,
		Generation: s.generation,
	}
}

// Cache one observable list per category, filled from the catalog.
//
// Slots are owned by the event loop: exported methods marshal onto it, the
// *OnLoop variants must only run on it.
type Cache struct {
	loop         *eventloop.Loop
	source       CatalogSource
	logger       *zap.Logger
	less         func(a, b Item) bool
	fetchTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// loop owned
	slots  map[Category]*slot
	closed bool
}

// NewCache .
func NewCache(loop *eventloop.Loop, source CatalogSource, logger *zap.Logger, opts ...CacheOption) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		loop:         loop,
		source:       source,
		logger:       logger,
		less:         byScheduleThenID,
		fetchTimeout: 10 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		slots:        make(map[Category]*slot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) sorted(items []Item) []Item {
	if c.less != nil {
		sort.SliceStable(items, func(i, j int) bool { return c.less(items[i], items[j]) })
	}
	return items
}

func (c *Cache) slotOnLoop(category Category) *slot {
	s, ok := c.slots[category]
	if !ok {
		s = &slot{list: newObservableList(category)}
		c.slots[category] = s
	}
	return s
}

func (c *Cache) publishOnLoop(category Category, s *slot) {
	s.list.publish(s.snapshot(category))
}

// Observe returns the list for category, creating an empty one on first
// use. It doesn't fetch.
func (c *Cache) Observe(ctx context.Context, category Category) (*ObservableList, error) {
	var (
		list *ObservableList
		err  error
	)
	if doErr := c.loop.Do(ctx, func() {
		if c.closed {
			err = ErrCacheClosed
			return
		}
		list = c.slotOnLoop(category).list
	}); doErr != nil {
		return nil, doErr
	}
	return list, err
}

// ObserveAndRefresh like Observe but also starts a fetch, the returned
// channel yields the fetch outcome
func (c *Cache) ObserveAndRefresh(ctx context.Context, category Category) (*ObservableList, <-chan error, error) {
	var (
		list *ObservableList
		err  error
	)
	done := make(chan error, 1)
	if doErr := c.loop.Do(ctx, func() {
		if c.closed {
			err = ErrCacheClosed
			return
		}
		list = c.slotOnLoop(category).list
		c.refreshOnLoop(category, done)
	}); doErr != nil {
		return nil, nil, doErr
	}
	if err != nil {
		return nil, nil, err
	}
	return list, c.outcome(done), nil
}

// Refresh fetches category again and replaces its list on success. The
// channel receives nil, the fetch error, ErrStaleResult when a newer refresh
// won or the list was forgotten, or ErrCacheClosed.
func (c *Cache) Refresh(category Category) <-chan error {
	done := make(chan error, 1)
	if !c.loop.Post(func() {
		if c.closed {
			done <- ErrCacheClosed
			return
		}
		c.refreshOnLoop(category, done)
	}) {
		done <- ErrCacheClosed
	}
	return c.outcome(done)
}

// outcome forwards the result of a fetch. Tasks still queued when the loop
// stops never run, the forwarded channel then yields ErrCacheClosed.
func (c *Cache) outcome(done <-chan error) <-chan error {
	out := make(chan error, 1)
	go func() {
		select {
		case err := <-done:
			out <- err
		case <-c.loop.Done():
			select {
			case err := <-done:
				out <- err
			default:
				out <- ErrCacheClosed
			}
		}
	}()
	return out
}

func (c *Cache) refreshOnLoop(category Category, done chan<- error) {
	s := c.slotOnLoop(category)
	s.generation++
	gen := s.generation
	s.loading = true
	c.publishOnLoop(category, s)

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout)
		docs, err := c.source.Query(ctx, FieldLevel, string(category))
		cancel()

		var items []Item
		if err == nil {
			items = make([]Item, 0, len(docs))
			for _, doc := range docs {
				items = append(items, FromDocument(doc))
			}
			items = c.sorted(items)
		}
		if !c.loop.Post(func() { c.completeOnLoop(category, s, gen, items, err, done) }) {
			done <- ErrCacheClosed
		}
	}()
}

func (c *Cache) completeOnLoop(category Category, s *slot, gen uint64, items []Item, err error, done chan<- error) {
	if c.closed {
		done <- ErrCacheClosed
		return
	}
	if c.slots[category] != s || gen != s.generation {
		c.logger.Debug("dropping stale fetch",
			zap.String("lesson.category", string(category)),
			zap.Uint64("generation", gen),
			zap.Uint64("latest", s.generation))
		done <- ErrStaleResult
		return
	}
	s.loading = false
	if err != nil {
		c.logger.Warn("lesson fetch failed, keeping last list",
			zap.String("lesson.category", string(category)), zap.Error(err))
		s.err = err
		c.publishOnLoop(category, s)
		done <- err
		return
	}
	s.items = items
	s.err = nil
	c.publishOnLoop(category, s)
	done <- nil
}

// InsertLocally adds item to the category list without a catalog round trip
func (c *Cache) InsertLocally(ctx context.Context, category Category, item Item) error {
	var err error
	if doErr := c.loop.Do(ctx, func() { err = c.insertOnLoop(category, item) }); doErr != nil {
		return doErr
	}
	return err
}

func (c *Cache) insertOnLoop(category Category, item Item) error {
	if c.closed {
		return ErrCacheClosed
	}
	if item.Category == "" {
		item.Category = category
	}
	s := c.slotOnLoop(category)
	items := make([]Item, 0, len(s.items)+1)
	items = append(items, s.items...)
	s.items = c.sorted(append(items, item))
	c.publishOnLoop(category, s)
	return nil
}

// RemoveLocally drops the item with id from the category list, it reports
// whether the item was present
func (c *Cache) RemoveLocally(ctx context.Context, category Category, id string) (bool, error) {
	var (
		removed bool
		err     error
	)
	if doErr := c.loop.Do(ctx, func() { removed, err = c.removeOnLoop(category, id) }); doErr != nil {
		return false, doErr
	}
	return removed, err
}

func (c *Cache) removeOnLoop(category Category, id string) (bool, error) {
	if c.closed {
		return false, ErrCacheClosed
	}
	s, ok := c.slots[category]
	if !ok {
		return false, nil
	}
	for i, it := range s.items {
		if it.ID == id {
			items := make([]Item, 0, len(s.items)-1)
			items = append(items, s.items[:i]...)
			s.items = append(items, s.items[i+1:]...)
			c.publishOnLoop(category, s)
			return true, nil
		}
	}
	return false, nil
}

func (c *Cache) findOnLoop(category Category, id string) (Item, bool) {
	s, ok := c.slots[category]
	if !ok {
		return Item{}, false
	}
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Forget drops the category list, in-flight fetches for it are discarded
func (c *Cache) Forget(ctx context.Context, category Category) error {
	return c.loop.Do(ctx, func() { delete(c.slots, category) })
}

// Close cancels in-flight fetches, later completions are dropped
func (c *Cache) Close(ctx context.Context) error {
	c.cancel()
	return c.loop.Do(ctx, func() {
		c.closed = true
		c.slots = make(map[Category]*slot)
	})
}

// touchOnLoop republishes the current lists so observers re-render after a
// change that lives outside the snapshot, like favorite flags
func (c *Cache) touchOnLoop(categories ...Category) {
	if len(categories) == 0 {
		for category, s := range c.slots {
			c.publishOnLoop(category, s)
		}
		return
	}
	for _, category := range categories {
		if s, ok := c.slots[category]; ok {
			c.publishOnLoop(category, s)
		}
	}
}
