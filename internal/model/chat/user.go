package chat

import "time"

// User anchors ownership of chats and diary entries. Users are provisioned
// lazily on first contact and never deleted here.
type User struct {
	ID        int64     `json:"id"`
	Username  *string   `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
