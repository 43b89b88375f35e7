package models

import "time"

// User represents an account on the ClipStream platform. PasswordHash and
// RefreshToken never leave the process; public payloads are built through
// Public so neither field can be serialized by accident.
type User struct {
	ID           string
	Handle       string
	Email        string
	DisplayName  string
	PasswordHash string
	AvatarURL    string
	CoverURL     string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public returns the outward projection of the user record, constructed field
// by field.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Handle:      u.Handle,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		CoverURL:    u.CoverURL,
		CreatedAt:   u.CreatedAt,
	}
}

// PublicUser is the response shape for profile endpoints.
type PublicUser struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Subscription is a directed edge from a subscriber to a channel. Both ends
// reference users; at most one edge exists per pair.
type Subscription struct {
	ID           string
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

// Video is owned by the content pipeline; the identity service only joins
// against it when enriching watch history.
type Video struct {
	ID           string    `json:"id"`
	PublisherID  string    `json:"publisherId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"videoUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	Duration     int64     `json:"durationSeconds"`
	Views        int64     `json:"views"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublisherSummary is the reduced projection attached to enriched history
// entries.
type PublisherSummary struct {
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatarUrl"`
}

// WatchHistoryEntry pairs a watched video with its publisher.
type WatchHistoryEntry struct {
	Video     Video            `json:"video"`
	Publisher PublisherSummary `json:"publisher"`
}

// ChannelProfile is the public read model for a channel page.
type ChannelProfile struct {
	Handle            string    `json:"handle"`
	DisplayName       string    `json:"displayName"`
	Email             string    `json:"email"`
	AvatarURL         string    `json:"avatarUrl"`
	CoverURL          string    `json:"coverUrl,omitempty"`
	SubscribersCount  int64     `json:"subscribersCount"`
	SubscribedToCount int64     `json:"subscribedToCount"`
	Subscribed        bool      `json:"isSubscribed"`
	CreatedAt         time.Time `json:"createdAt"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
