package models

import "time"

// InvitationStatus is the state of an invitation. Every state but pending is terminal.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationRejected  InvitationStatus = "rejected"
	InvitationCancelled InvitationStatus = "cancelled"
)

// DirectInvitation is a request to open a one-to-one room.
type DirectInvitation struct {
	ID        string           `db:"id" json:"id"`
	InviterID string           `db:"inviter_id" json:"inviter_id"`
	InviteeID string           `db:"invitee_id" json:"invitee_id"`
	Status    InvitationStatus `db:"status" json:"status"`
	RoomID    *string          `db:"room_id" json:"room_id"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// GroupInvitation is a request to join an existing group room.
type GroupInvitation struct {
	ID        string           `db:"id" json:"id"`
	RoomID    string           `db:"room_id" json:"room_id"`
	InviterID string           `db:"inviter_id" json:"inviter_id"`
	InviteeID string           `db:"invitee_id" json:"invitee_id"`
	Status    InvitationStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// DirectInvitationView renders a direct invitation with both profiles.
type DirectInvitationView struct {
	ID        string           `json:"id"`
	Kind      string           `json:"kind"`
	Inviter   UserSummary      `json:"inviter"`
	Invitee   UserSummary      `json:"invitee"`
	Status    InvitationStatus `json:"status"`
	RoomID    *string          `json:"room_id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// GroupInvitationView renders a group invitation with the room name.
type GroupInvitationView struct {
	ID        string           `json:"id"`
	Kind      string           `json:"kind"`
	RoomID    string           `json:"room_id"`
	RoomName  *string          `json:"room_name"`
	Inviter   UserSummary      `json:"inviter"`
	Invitee   UserSummary      `json:"invitee"`
	Status    InvitationStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
