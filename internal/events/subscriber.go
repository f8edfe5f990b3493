package events

// Subscriber receives events from the fan-out bus. Every subscriber for a
// topic receives every published event independently (broadcast, not
// competing consumers).
type Subscriber interface {
	// Subscribe delivers raw event payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
