package models

import (
	"time"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// ConnectionRequest is a proposal from one user to another to connect.
// PairKey is the canonical unordered pair identity; a partial unique index on
// it (status=pending) guarantees at most one live request per pair.
type ConnectionRequest struct {
	ID        string            `bson:"_id,omitempty" json:"id"`
	From      string            `bson:"from" json:"from"`
	To        string            `bson:"to" json:"to"`
	Message   string            `bson:"message,omitempty" json:"message,omitempty"`
	Status    RequestStatus     `bson:"status" json:"status"`
	Meta      map[string]string `bson:"meta,omitempty" json:"meta,omitempty"`
	PairKey   string            `bson:"pair_key" json:"-"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updated_at"`
}

// PairKey returns the canonical key for an unordered user pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
