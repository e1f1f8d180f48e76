package domain

// Book represents an e-book available to the user.
type Book struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Filename string `json:"filename"`
}

// UserBook is the per-user record for a book in the user's library. Its
// LastLocation field holds the last-read position flushed by a previous
// session, or the zero token when the book was never opened remotely.
type UserBook struct {
	UserID       string        `json:"user_id"`
	BookID       string        `json:"book_id"`
	LastLocation PositionToken `json:"last_location"`
}
