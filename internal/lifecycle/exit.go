package lifecycle

import (
	"sync"
	"sync/atomic"

	"ebook-reader/internal/domain"
)

// ExitFunc is the save action invoked when the user is leaving the reader.
type ExitFunc func() error

// ExitNotifier fans two independent trigger sources into one logical exit
// signal: the navigation event fired before the reader screen is removed,
// and the host application transitioning to inactive or background. Both
// triggers invoke the same registered callback. The two sources can fire
// near-simultaneously for one departure, so the callback may run twice per
// transition; callers register idempotent save actions (last write wins on
// the remote side).
type ExitNotifier struct {
	appState domain.AppStateSource
	nav      domain.NavigationSource
	logger   domain.Logger
}

func NewExitNotifier(appState domain.AppStateSource, nav domain.NavigationSource, logger domain.Logger) *ExitNotifier {
	return &ExitNotifier{
		appState: appState,
		nav:      nav,
		logger:   logger,
	}
}

// Register subscribes to both trigger sources and returns a subscription.
// Listener subscription happens exactly once here; the callback can be
// swapped afterwards with SetCallback so each exit invokes the latest
// closure without re-subscribing.
func (n *ExitNotifier) Register(onExit ExitFunc) *ExitSubscription {
	sub := &ExitSubscription{logger: n.logger}
	sub.callback.Store(&onExit)

	unsubNav := n.nav.OnBeforeRemove(func() {
		sub.fire("screen_remove")
	})
	unsubApp := n.appState.Subscribe(func(state domain.AppState) {
		if state.Leaving() {
			sub.fire("app_state")
		}
	})
	sub.unsubscribes = []func(){unsubNav, unsubApp}
	return sub
}

// ExitSubscription ties the two trigger subscriptions together. Dispose
// unsubscribes both exactly once; further calls are no-ops.
type ExitSubscription struct {
	callback     atomic.Pointer[ExitFunc]
	unsubscribes []func()
	disposeOnce  sync.Once
	logger       domain.Logger
}

// SetCallback replaces the exit callback without touching the underlying
// listener subscriptions.
func (s *ExitSubscription) SetCallback(onExit ExitFunc) {
	s.callback.Store(&onExit)
}

// Dispose removes both trigger subscriptions.
func (s *ExitSubscription) Dispose() {
	s.disposeOnce.Do(func() {
		for _, unsubscribe := range s.unsubscribes {
			unsubscribe()
		}
	})
}

func (s *ExitSubscription) fire(trigger string) {
	fn := s.callback.Load()
	if fn == nil {
		return
	}
	if err := (*fn)(); err != nil {
		// Exit events are not a safe place for retry loops; the error has
		// already been reported to the save action's owner.
		s.logger.Error("Exit save action failed", err, "trigger", trigger)
	}
}
