package mqttv3

import "errors"

// Will packet errors.
var (
	ErrWillTopicEmpty = errors.New("will topic cannot be empty")
	ErrWillInvalidQoS = errors.New("invalid will QoS level")
)

// Will is the last-testament message the server publishes on the
// client's behalf if the connection drops non-gracefully. The zero
// value is "absent" and contributes no bytes to CONNECT.
type Will struct {
	// Topic is the topic the will is published to. A will is present
	// iff the topic is non-empty.
	Topic string

	// Payload is the will message body. May be empty.
	Payload []byte

	// Retain asks the broker to store the will as the topic's retained
	// message.
	Retain bool

	// QoS is the delivery level the broker uses for the will.
	QoS QoS
}

// Valid reports whether a will is present.
func (w Will) Valid() bool {
	return w.Topic != ""
}

// Validate checks a present will for encodability.
func (w Will) Validate() error {
	if w.Topic == "" {
		return ErrWillTopicEmpty
	}
	if !w.QoS.Valid() {
		return ErrWillInvalidQoS
	}
	return nil
}
