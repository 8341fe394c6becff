package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Sqlite          Category = "Sqlite"
	Badger          Category = "Badger"
	RabbitMQ        Category = "RabbitMQ"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	WebSocket       Category = "WebSocket"
	Room            Category = "Room"
	Auth            Category = "Auth"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Room
	Join        SubCategory = "Join"
	Leave       SubCategory = "Leave"
	Send        SubCategory = "Send"
	Disconnect  SubCategory = "Disconnect"
	Rejected    SubCategory = "Rejected"
	Persistence SubCategory = "Persistence"
	Delivery    SubCategory = "Delivery"

	// Auth / WebSocket
	Login     SubCategory = "Login"
	Signup    SubCategory = "Signup"
	Handshake SubCategory = "Handshake"
	Read      SubCategory = "Read"
	Write     SubCategory = "Write"
	Publish   SubCategory = "Publish"
	Consume   SubCategory = "Consume"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"
	SessionID    ExtraKey = "SessionId"
	RoomID       ExtraKey = "RoomId"
	Username     ExtraKey = "Username"
	MessageID    ExtraKey = "MessageId"
	Members      ExtraKey = "Members"
	EventType    ExtraKey = "EventType"
)
