package domain

// PositionToken is an opaque location identifier produced by the rendering
// engine (an EPUB CFI in practice). The format is renderer-specific: tokens
// are never parsed here, only compared for equality and handed back to the
// renderer to navigate.
type PositionToken string

// IsZero reports whether no position is recorded.
func (t PositionToken) IsZero() bool {
	return t == ""
}

// LocationConflict is raised at book-open time when the locally stored
// position and the remotely stored position both exist and differ (the user
// read on another device). It is resolved by an explicit user choice and is
// never persisted.
type LocationConflict struct {
	Local  PositionToken `json:"local"`
	Remote PositionToken `json:"remote"`
}
