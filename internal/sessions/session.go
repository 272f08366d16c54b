package sessions

import "time"

// Entry records one live collaboration session on a document.
type Entry struct {
	SessionID  string    `bson:"sessionId" json:"sessionId"`
	DocumentID string    `bson:"documentId" json:"documentId"`
	Subject    string    `bson:"subject,omitempty" json:"subject,omitempty"`
	JoinedAt   time.Time `bson:"joinedAt" json:"joinedAt"`
	ExpiresAt  time.Time `bson:"expiresAt" json:"expiresAt"`
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
