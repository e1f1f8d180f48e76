package reader

import (
	"testing"

	"ebook-reader/internal/domain"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name         string
		local        domain.PositionToken
		remote       domain.PositionToken
		wantInitial  domain.PositionToken
		wantConflict bool
	}{
		{
			name:        "both empty starts at beginning",
			local:       "",
			remote:      "",
			wantInitial: "",
		},
		{
			name:        "only remote adopts remote",
			local:       "",
			remote:      "epubcfi(/6/8)",
			wantInitial: "epubcfi(/6/8)",
		},
		{
			name:        "only local adopts local",
			local:       "epubcfi(/6/4)",
			remote:      "",
			wantInitial: "epubcfi(/6/4)",
		},
		{
			name:        "equal positions agree",
			local:       "epubcfi(/6/4)",
			remote:      "epubcfi(/6/4)",
			wantInitial: "epubcfi(/6/4)",
		},
		{
			name:         "differing positions keep local and raise conflict",
			local:        "epubcfi(/6/4)",
			remote:       "epubcfi(/6/8)",
			wantInitial:  "epubcfi(/6/4)",
			wantConflict: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.local, tt.remote)
			if got.Initial != tt.wantInitial {
				t.Fatalf("expected initial %q, got %q", tt.wantInitial, got.Initial)
			}
			if tt.wantConflict {
				if got.Conflict == nil {
					t.Fatal("expected a conflict, got none")
				}
				if got.Conflict.Local != tt.local || got.Conflict.Remote != tt.remote {
					t.Fatalf("conflict should carry both tokens, got %+v", got.Conflict)
				}
			} else if got.Conflict != nil {
				t.Fatalf("expected no conflict, got %+v", got.Conflict)
			}
		})
	}
}
