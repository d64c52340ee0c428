package domain

// UserStatus 使用者狀態, values follow the member table
type UserStatus int

// 0=offline, 1=online, 2=ban, 3=delete
const (
	// UserStatusOffline active account, not logged in
	UserStatusOffline UserStatus = iota
	// UserStatusOnline active account, logged in
	UserStatusOnline
	// UserStatusBanned banned by an admin
	UserStatusBanned
	// UserStatusDeleted account removed
	UserStatusDeleted
)

// IsActive banned and deleted accounts can't receive messages
func (s UserStatus) IsActive() bool {
	return s == UserStatusOffline || s == UserStatusOnline
}

// String readable status
func (s UserStatus) String() string {
	switch s {
	case UserStatusOffline:
		return "offline"
	case UserStatusOnline:
		return "online"
	case UserStatusBanned:
		return "banned"
	case UserStatusDeleted:
		return "deleted"
	}
	return "unknown"
}

// UserSummary definition display data from the user directory
type UserSummary struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Status      UserStatus `json:"status"`
}
