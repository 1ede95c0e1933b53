package domain

// Identity is what the identity provider resolves a bearer credential to.
type Identity struct {
	UserID string
	Role   string
}

// UserSummary is the display-safe projection of a user. It never carries
// credentials or device tokens.
type UserSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// PropertySummary is the display-safe projection of a catalog listing.
type PropertySummary struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Address string   `json:"address,omitempty"`
	Photos  []string `json:"photos,omitempty"`
}
