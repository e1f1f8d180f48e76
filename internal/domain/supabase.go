package domain

import "github.com/supabase-community/supabase-go"

// SupabaseClient wraps access to the hosted backend: the shared anon client,
// per-request clients scoped to a user's access token (so row-level security
// applies), and access-token validation.
type SupabaseClient interface {
	Initialize() error
	ValidateToken(accessToken string) (*SupabaseUser, error)

	DB() *supabase.Client
	GetClientWithToken(accessToken string) (*supabase.Client, error)
}
