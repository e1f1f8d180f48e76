package reader

import "ebook-reader/internal/domain"

// ReconcileResult is the outcome of comparing the device-local position with
// the remotely synchronized one at book-open time. Initial is where the
// renderer should start; Conflict is non-nil when the user must choose.
type ReconcileResult struct {
	Initial  domain.PositionToken
	Conflict *domain.LocationConflict
}

// Reconcile decides the opening position. Tokens are opaque: they are only
// compared for equality, never parsed or ordered. When both sides hold a
// position and they differ, the local one is adopted provisionally and a
// conflict is surfaced so the user can jump to the remote position instead.
func Reconcile(local, remote domain.PositionToken) ReconcileResult {
	switch {
	case local.IsZero() && remote.IsZero():
		return ReconcileResult{}
	case local.IsZero():
		return ReconcileResult{Initial: remote}
	case remote.IsZero() || local == remote:
		return ReconcileResult{Initial: local}
	default:
		return ReconcileResult{
			Initial: local,
			Conflict: &domain.LocationConflict{
				Local:  local,
				Remote: remote,
			},
		}
	}
}
