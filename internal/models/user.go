package models

// User is the slice of the user directory this service reads.
type User struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	ProfileImage *string `db:"profile_image" json:"profile_image"`
	PublicKey    *string `db:"public_key" json:"-"`
}

// HasPublicKey reports whether the user can receive end-to-end encrypted chats.
func (u User) HasPublicKey() bool {
	return u.PublicKey != nil && *u.PublicKey != ""
}

// Summary renders the basic public profile.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, ProfileImage: u.ProfileImage}
}

// UserSummary is the public profile embedded in other payloads.
type UserSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ProfileImage *string `json:"profile_image"`
}

// Asset is an uploaded file owned by the asset service.
type Asset struct {
	ID           string `db:"id" json:"id"`
	OriginalName string `db:"original_name" json:"original_name"`
	ContentType  string `db:"content_type" json:"content_type"`
	FileSize     int64  `db:"file_size" json:"file_size"`
	URL          string `db:"url" json:"url"`
}
