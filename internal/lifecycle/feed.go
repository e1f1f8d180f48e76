package lifecycle

import (
	"sync"

	"ebook-reader/internal/domain"
)

// Feed is an in-process event bus implementing both trigger sources. The
// host (bridge handlers, platform glue) pushes app-state transitions and
// before-remove events into it; observers registered through the
// domain.AppStateSource / domain.NavigationSource interfaces receive them.
type Feed struct {
	mu      sync.Mutex
	nextID  int
	appSubs map[int]func(domain.AppState)
	navSubs map[int]func()
}

func NewFeed() *Feed {
	return &Feed{
		appSubs: make(map[int]func(domain.AppState)),
		navSubs: make(map[int]func()),
	}
}

// Subscribe implements domain.AppStateSource.
func (f *Feed) Subscribe(fn func(domain.AppState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.appSubs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.appSubs, id)
	}
}

// OnBeforeRemove implements domain.NavigationSource.
func (f *Feed) OnBeforeRemove(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.navSubs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.navSubs, id)
	}
}

// EmitAppState delivers a host application state transition.
func (f *Feed) EmitAppState(state domain.AppState) {
	f.mu.Lock()
	subs := make([]func(domain.AppState), 0, len(f.appSubs))
	for _, fn := range f.appSubs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}

// EmitBeforeRemove delivers the screen-removal event.
func (f *Feed) EmitBeforeRemove() {
	f.mu.Lock()
	subs := make([]func(), 0, len(f.navSubs))
	for _, fn := range f.navSubs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
