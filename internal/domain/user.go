package domain

// SupabaseUser represents an authenticated user from Supabase Auth.
type SupabaseUser struct {
	ID           string
	Email        string
	UserMetadata map[string]interface{}
	CreatedAt    string
	UpdatedAt    string
}
