package bus

import "strings"

// Topic names a fan-out channel: room:<id> or user:<id>.
type Topic string

const (
	roomPrefix = "room:"
	userPrefix = "user:"
)

// RoomTopic carries frames for everyone viewing a room.
func RoomTopic(roomID string) Topic { return Topic(roomPrefix + roomID) }

// UserTopic carries notifications for every session of a user.
func UserTopic(userID string) Topic { return Topic(userPrefix + userID) }

// Kind returns "room", "user" or "unknown".
func (t Topic) Kind() string {
	switch {
	case strings.HasPrefix(string(t), roomPrefix):
		return "room"
	case strings.HasPrefix(string(t), userPrefix):
		return "user"
	default:
		return "unknown"
	}
}

// ParseTopic accepts only well-formed room and user topics.
func ParseTopic(s string) (Topic, bool) {
	t := Topic(s)
	switch t.Kind() {
	case "room":
		return t, len(s) > len(roomPrefix)
	case "user":
		return t, len(s) > len(userPrefix)
	default:
		return "", false
	}
}
