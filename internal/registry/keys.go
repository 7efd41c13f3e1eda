package registry

import "strconv"

// Group keys are namespaced so a room and a user with the same numeric
// identifier can never collide.
const (
	roomKeyPrefix = "room:"
	userKeyPrefix = "user:"
)

// RoomKey derives the group key for a chat room.
func RoomKey(roomID int64) string {
	return roomKeyPrefix + strconv.FormatInt(roomID, 10)
}

// UserKey derives the group key for a user's personal notification channel.
func UserKey(userID int64) string {
	return userKeyPrefix + strconv.FormatInt(userID, 10)
}
