package models

import "time"

// Folder groups rooms for a single user.
type Folder struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	SortOrder int       `db:"sort_order" json:"order"`
	RoomCount int       `db:"room_count" json:"room_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FolderRoom links a room into a folder.
type FolderRoom struct {
	ID        string    `db:"id" json:"id"`
	FolderID  string    `db:"folder_id" json:"folder"`
	RoomID    string    `db:"room_id" json:"room_id"`
	SortOrder int       `db:"sort_order" json:"order"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FolderRoomView is a folder entry with the room rendered for its owner.
type FolderRoomView struct {
	ID        string    `json:"id"`
	Folder    string    `json:"folder"`
	Room      RoomView  `json:"room"`
	SortOrder int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}
