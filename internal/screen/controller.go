package screen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var (
	// ErrNothingToConfirm is returned by Confirm when neither a search result
	// nor a selection is shown.
	ErrNothingToConfirm = errors.New("no search result to confirm")
	// ErrClosed is returned by every intent after Close.
	ErrClosed = errors.New("controller closed")
)

const (
	storeOpQueue = 32
	saveTimeout  = 10 * time.Second
)

// Lookuper is the part of weather.Service the controller drives.
type Lookuper interface {
	LookupByName(ctx context.Context, query, credential string) (weather.Record, error)
	LookupByCoordinate(ctx context.Context, lat, lon float64, credential string) (weather.Record, error)
}

// Controller owns the display state of one screen. State is only touched by
// the actor goroutine; lookups run on the caller's goroutine and their
// results are applied only if no newer intent arrived meanwhile. Store
// operations run in order on a separate goroutine, so a restore always sees
// the saves issued before it.
type Controller struct {
	lookup     Lookuper
	store      weather.Store
	credential string

	cmds      chan func()
	storeOps  chan func()
	quit      chan struct{}
	done      chan struct{}
	persisted chan struct{}
	closeOnce sync.Once

	// owned by the actor
	state  DisplayState
	query  string
	gen    uint64
	cancel context.CancelFunc
}

// New restores the last selection from store and starts the controller.
// A store that cannot be read is logged and treated as empty.
func New(ctx context.Context, lookup Lookuper, store weather.Store, credential string) *Controller {
	c := &Controller{
		lookup:     lookup,
		store:      store,
		credential: credential,
		cmds:       make(chan func()),
		storeOps:   make(chan func(), storeOpQueue),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		persisted:  make(chan struct{}),
	}

	rec, err := store.Load(ctx)
	if err != nil {
		logger.Warnf("screen: restore failed: %v", err)
	}
	c.state = restoredState(rec)

	go c.run()
	go c.persist()
	return c
}

// State returns the current display state.
func (c *Controller) State() (DisplayState, error) {
	var s DisplayState
	err := c.do(func() { s = c.state })
	return s, err
}

// Query returns the current search text.
func (c *Controller) Query() (string, error) {
	var q string
	err := c.do(func() { q = c.query })
	return q, err
}

// Search looks text up by name. Blank text restores the persisted selection
// instead. A result is only offered when its place name equals the query,
// ignoring case.
func (c *Controller) Search(ctx context.Context, text string) (DisplayState, error) {
	q := strings.TrimSpace(text)
	if q == "" {
		return c.restore(ctx, text)
	}

	lookupCtx, gen, err := c.begin(ctx, &text)
	if err != nil {
		return DisplayState{}, err
	}

	rec, err := c.lookup.LookupByName(lookupCtx, q, c.credential)
	switch {
	case err != nil:
		logger.Infof("screen: search %q failed (%s)", q, weather.KindOf(err))
		return c.finish(gen, NotFoundState(), nil)
	case !strings.EqualFold(rec.Place.Name, q):
		logger.Infof("screen: search %q resolved to %q, not offered", q, rec.Place.Name)
		return c.finish(gen, NotFoundState(), nil)
	default:
		return c.finish(gen, AvailableState(rec), nil)
	}
}

// Confirm selects the search result on screen, persists it and clears the
// search text. Confirming a selection that is already active changes nothing.
func (c *Controller) Confirm(ctx context.Context) (DisplayState, error) {
	var (
		s        DisplayState
		rejected bool
	)
	err := c.do(func() {
		if c.state.Kind == SelectionActive && c.state.Record != nil {
			s = c.state
			return
		}
		if c.state.Kind != SearchResultAvailable || c.state.Record == nil {
			rejected = true
			s = c.state
			return
		}
		c.supersede()
		rec := *c.state.Record
		c.state = ActiveState(rec)
		c.query = ""
		c.save(rec)
		s = c.state
	})
	if err != nil {
		return DisplayState{}, err
	}
	if rejected {
		return s, ErrNothingToConfirm
	}
	return s, nil
}

// LocationGranted looks up the device coordinate and selects it on success.
func (c *Controller) LocationGranted(ctx context.Context, lat, lon float64) (DisplayState, error) {
	lookupCtx, gen, err := c.begin(ctx, nil)
	if err != nil {
		return DisplayState{}, err
	}

	rec, err := c.lookup.LookupByCoordinate(lookupCtx, lat, lon, c.credential)
	if err != nil {
		logger.Infof("screen: location %.4f,%.4f failed (%s)", lat, lon, weather.KindOf(err))
		return c.finish(gen, NotFoundState(), nil)
	}
	return c.finish(gen, ActiveState(rec), &rec)
}

// Restore re-reads the store and shows the persisted selection, if any.
func (c *Controller) Restore(ctx context.Context) (DisplayState, error) {
	return c.restore(ctx, "")
}

// Close cancels any lookup in flight, stops the controller and waits for
// queued saves to reach the store. It does not close the store.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		_ = c.do(c.supersede)
		close(c.quit)
		<-c.done
		close(c.storeOps)
		<-c.persisted
	})
}

type loadResult struct {
	rec weather.Record
	err error
}

func (c *Controller) restore(ctx context.Context, text string) (DisplayState, error) {
	reply := make(chan loadResult, 1)
	var gen uint64
	err := c.do(func() {
		c.supersede()
		gen = c.gen
		c.query = text
		c.storeOps <- func() {
			rec, err := c.store.Load(ctx)
			reply <- loadResult{rec: rec, err: err}
		}
	})
	if err != nil {
		return DisplayState{}, err
	}

	var res loadResult
	select {
	case res = <-reply:
	case <-ctx.Done():
		return DisplayState{}, ctx.Err()
	}
	if res.err != nil {
		logger.Warnf("screen: restore failed: %v", res.err)
	}
	return c.finish(gen, restoredState(res.rec), nil)
}

// begin starts a new intent: it cancels the previous lookup and returns the
// context and generation the new one runs under. A nil text keeps the
// search text.
func (c *Controller) begin(ctx context.Context, text *string) (context.Context, uint64, error) {
	var (
		lookupCtx context.Context
		gen       uint64
	)
	err := c.do(func() {
		c.supersede()
		lookupCtx, c.cancel = context.WithCancel(ctx)
		gen = c.gen
		if text != nil {
			c.query = *text
		}
	})
	return lookupCtx, gen, err
}

// finish applies next if gen is still the latest intent, queuing save when
// set, and returns the resulting state.
func (c *Controller) finish(gen uint64, next DisplayState, save *weather.Record) (DisplayState, error) {
	var s DisplayState
	err := c.do(func() {
		if gen == c.gen {
			c.state = next
			if save != nil {
				c.save(*save)
			}
			if c.cancel != nil {
				c.cancel()
				c.cancel = nil
			}
		} else {
			logger.Debugf("screen: dropped stale result of intent %d (current %d)", gen, c.gen)
		}
		s = c.state
	})
	return s, err
}

// supersede invalidates the intent in flight. Actor only.
func (c *Controller) supersede() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// save queues rec for the store. Actor only.
func (c *Controller) save(rec weather.Record) {
	c.storeOps <- func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := c.store.Save(ctx, rec); err != nil {
			logger.Warnf("screen: saving %q failed: %v", rec.Place.Name, err)
			return
		}
		logger.Debugf("screen: saved %q", rec.Place.Name)
	}
}

func (c *Controller) do(fn func()) error {
	reply := make(chan struct{})
	select {
	case c.cmds <- func() { fn(); close(reply) }:
	case <-c.quit:
		return ErrClosed
	}
	<-reply
	return nil
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.quit:
			return
		}
	}
}

func (c *Controller) persist() {
	defer close(c.persisted)
	for op := range c.storeOps {
		op()
	}
}
