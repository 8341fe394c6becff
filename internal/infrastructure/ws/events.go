package ws

// Inbound frame types.
const (
	Authenticate = "authenticate"
	JoinRoom     = "join_room"
	SendMessage  = "send_message"
	LeaveRoom    = "leave_room"
)

// Outbound frame types.
const (
	JoinRoomAnnouncement  = "join_room_announcement"
	ReceiveMessage        = "receive_message"
	LeaveRoomAnnouncement = "leave_room_announcement"
	MessageHistory        = "message_history"
	Authenticated         = "authenticated"
	ErrorEvent            = "error"
)

// Error codes carried by ErrorEvent frames.
const (
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeNotInRoom             = "NOT_IN_ROOM"
	CodePersistenceFailure    = "PERSISTENCE_FAILURE"
	CodeIdentityLookupFailure = "IDENTITY_LOOKUP_FAILURE"
	CodeBadRequest            = "BAD_REQUEST"
	CodeRateLimited           = "RATE_LIMITED"
	CodeInternal              = "INTERNAL"
)
