package models

import "time"

// RoomType distinguishes one-to-one rooms from group rooms.
type RoomType string

const (
	RoomDirect RoomType = "direct"
	RoomGroup  RoomType = "group"
)

// Valid reports whether t is a known room type.
func (t RoomType) Valid() bool {
	return t == RoomDirect || t == RoomGroup
}

// Role is a member's standing inside a group room.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// CanManage reports whether the role may invite, rename or remove members.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Room is a chat room row.
type Room struct {
	ID          string    `db:"id" json:"id"`
	Type        RoomType  `db:"room_type" json:"room_type"`
	Name        *string   `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	CreatedBy   *string   `db:"created_by" json:"created_by"`
	DirectKey   *string   `db:"direct_key" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Member is a (room, user) membership row.
type Member struct {
	ID         string     `db:"id" json:"id"`
	RoomID     string     `db:"room_id" json:"room_id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Role       Role       `db:"role" json:"role"`
	Nickname   *string    `db:"nickname" json:"nickname"`
	JoinedAt   time.Time  `db:"joined_at" json:"joined_at"`
	LastReadAt *time.Time `db:"last_read_at" json:"last_read_at"`
}

// MemberView is a membership rendered for clients.
type MemberView struct {
	ID         string      `json:"id"`
	User       UserSummary `json:"user"`
	Role       Role        `json:"role"`
	Nickname   *string     `json:"nickname"`
	JoinedAt   time.Time   `json:"joined_at"`
	LastReadAt *time.Time  `json:"last_read_at"`
}

// RoomView is a room rendered for a specific viewer.
type RoomView struct {
	ID          string       `json:"id"`
	RoomType    RoomType     `json:"room_type"`
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	CreatedBy   *UserSummary `json:"created_by"`
	Members     []MemberView `json:"members"`
	MemberCount int          `json:"member_count"`
	LastMessage *MessageView `json:"last_message"`
	UnreadCount int          `json:"unread_count"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// DirectKey is the order-independent key of a user pair.
func DirectKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
