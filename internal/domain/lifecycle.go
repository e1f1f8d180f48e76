package domain

// AppState is the lifecycle state of the host application.
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateInactive   AppState = "inactive"
	AppStateBackground AppState = "background"
)

// Leaving reports whether the transition counts as an exit event.
func (s AppState) Leaving() bool {
	return s == AppStateInactive || s == AppStateBackground
}

// AppStateSource delivers host application state transitions. Subscribe
// returns a function that removes the observer.
type AppStateSource interface {
	Subscribe(fn func(AppState)) (unsubscribe func())
}

// NavigationSource delivers the navigation-lifecycle event fired before the
// reader screen is removed.
type NavigationSource interface {
	OnBeforeRemove(fn func()) (unsubscribe func())
}
