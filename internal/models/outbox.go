package models

import (
	"encoding/json"
	"time"
)

// TopicPetitionTransition is the outbox topic written by every workflow transition.
const TopicPetitionTransition = "petition.transition"

// OutboxMessage is a notification recorded in the same transaction as the change it describes.
type OutboxMessage struct {
	ID          string          `db:"id" json:"id"`
	Topic       string          `db:"topic" json:"topic"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Attempts    int             `db:"attempts" json:"attempts"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	PublishedAt *time.Time      `db:"published_at" json:"published_at,omitempty"`
}

// TransitionEvent is the payload of a petition.transition message.
type TransitionEvent struct {
	PetitionID int64          `json:"petition_id"`
	SNo        string         `json:"sno"`
	Operation  string         `json:"operation"`
	From       PetitionStatus `json:"from"`
	To         PetitionStatus `json:"to"`
	HandlerID  string         `json:"handler_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Version    int64          `json:"version"`
	OccurredAt time.Time      `json:"occurred_at"`
}
