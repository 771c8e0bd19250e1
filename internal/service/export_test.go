package service

// SetAfterCapacityCheck installs fn to run inside InviteMembers once the
// capacity check passed and before any member row is written
func SetAfterCapacityCheck(s *ChatRoomService, fn func(roomID int64)) {
	s.afterCapacityCheck = fn
}

var DirectLockKey = directLockKey
