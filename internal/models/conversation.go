package models

import "time"

// Conversation is a 1:1 or group channel. For 1:1 conversations DirectKey
// holds the canonical participant pair so creation is idempotent; it is empty
// for groups.
type Conversation struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Title        string    `bson:"title,omitempty" json:"title,omitempty"`
	Participants []string  `bson:"participants" json:"participants"`
	IsGroup      bool      `bson:"is_group" json:"is_group"`
	DirectKey    string    `bson:"direct_key,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID is a member of the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
