package utils

import "sync"

// MessageTracker remembers the source message of each in-flight item so its
// offset can be committed once the item is handled.
type MessageTracker[M any] struct {
	messages sync.Map
}

func NewMessageTracker[M any]() *MessageTracker[M] {
	return &MessageTracker[M]{}
}

func (t *MessageTracker[M]) Track(id string, msg M) {
	t.messages.Store(id, msg)
}

// Take returns and forgets the message tracked under id.
func (t *MessageTracker[M]) Take(id string) (M, bool) {
	msg, ok := t.messages.LoadAndDelete(id)
	if !ok {
		var zero M
		return zero, false
	}
	return msg.(M), true
}
