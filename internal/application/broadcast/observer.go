package broadcast

// Observer is notified of engine activity. Calls happen inline and must be cheap.
type Observer interface {
	SessionConnected()
	SessionDisconnected()
	RoomJoined(roomID string)
	RoomLeft(roomID string)
	MessageSent(roomID string)
	PersistenceFailed(roomID string)
	DeliveryDropped(roomID string)
	Rejected(operation string, reason error)
}

type nopObserver struct{}

func (nopObserver) SessionConnected() {}
func (nopObserver) SessionDisconnected() {}
func (nopObserver) RoomJoined(string) {}
func (nopObserver) RoomLeft(string) {}
func (nopObserver) MessageSent(string) {}
func (nopObserver) PersistenceFailed(string) {}
func (nopObserver) DeliveryDropped(string) {}
func (nopObserver) Rejected(string, error) {}
