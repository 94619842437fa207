package deedhouse

import (
	"reflect"
	"regexp"

	"github.com/iov-one/deedhouse/errors"
)

// Msg is a message for a component to take an action
// (Make a state transition). It is just the request, and
// must be validated by the Handlers. All authentication
// information is provided by the ledger through the Call in the context.
type Msg interface {
	Persistent

	// Return the message path.
	// This is used by the Router to locate the proper Handler.
	// Msg should be created alongside the Handler that corresponds to them.
	//
	// Multiple types may have the same value, and will end up at the
	// same Handler.
	//
	// Must be alphanumeric [0-9A-Za-z_\-/]+
	Path() string

	// Validate performs a sanity checks on this message. It returns an
	// error if at least one test does not pass and message is considered
	// invalid.
	Validate() error
}

// Marshaller is anything that can be represented in binary
//
// Marshall may validate the data before serializing it and
// unless you previously validated the struct,
// errors should be expected.
type Marshaller interface {
	Marshal() ([]byte, error)
}

// Persistent supports Marshal and Unmarshal
//
// This is separated from Marshal, as this almost always requires
// a pointer, and functions that only need to marshal bytes can
// use the Marshaller interface to access non-pointers.
//
// As with Marshaller, this may do internal validation on the data
// and errors should be expected.
type Persistent interface {
	Marshaller
	Unmarshal([]byte) error
}

// Tx represent the data delivered to a handler.
// It includes the actual message. Everything needed to authenticate the
// sender is checked by the ledger before the handler is called.
type Tx interface {
	// GetMsg returns the action we wish to communicate
	GetMsg() (Msg, error)
}

// GetPath returns the path of the message, or (missing) if no message
func GetPath(tx Tx) string {
	msg, err := tx.GetMsg()
	if err == nil && msg != nil {
		return msg.Path()
	}
	return "(missing)"
}

// IsValidPath tests the format of a message path.
var IsValidPath = regexp.MustCompile(`^[a-zA-Z0-9_\-]+/[a-zA-Z0-9_\-]+$`).MatchString

// RawMsg is a message in its serialized form. This is how messages travel
// between accounts: the ledger does not know the concrete message types
// that each component handles.
type RawMsg struct {
	Route string
	Data  []byte
}

var _ Msg = (*RawMsg)(nil)

// NewRawMsg serializes given message.
func NewRawMsg(msg Msg) (*RawMsg, error) {
	if raw, ok := msg.(*RawMsg); ok {
		return raw, nil
	}
	data, err := msg.Marshal()
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %q", msg.Path())
	}
	return &RawMsg{Route: msg.Path(), Data: data}, nil
}

// Path returns the path of the serialized message.
func (m *RawMsg) Path() string {
	return m.Route
}

// Validate checks only the path. The content can be validated only once
// decoded into the concrete message.
func (m *RawMsg) Validate() error {
	if !IsValidPath(m.Route) {
		return errors.Wrapf(errors.ErrMsg, "invalid path %q", m.Route)
	}
	return nil
}

func (m *RawMsg) Marshal() ([]byte, error) {
	return Marshal(m)
}

func (m *RawMsg) Unmarshal(raw []byte) error {
	return Unmarshal(raw, m)
}

// TxMsg is the simplest Tx implementation, carrying a single message.
type TxMsg struct {
	Msg Msg
}

var _ Tx = TxMsg{}

// GetMsg implements Tx.
func (t TxMsg) GetMsg() (Msg, error) {
	if t.Msg == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "no message")
	}
	return t.Msg, nil
}

// LoadMsg extracts the message represented by given transaction into given
// destination. Before returning message validation method is called.
//
// The destination must be a pointer to the message type. When the
// transaction carries a RawMsg with the same path, it is decoded into the
// destination.
func LoadMsg(tx Tx, destination Msg) error {
	msg, err := tx.GetMsg()
	if err != nil {
		return errors.Wrap(err, "cannot get transaction message")
	}

	if raw, ok := msg.(*RawMsg); ok {
		if _, isRaw := destination.(*RawMsg); !isRaw {
			if raw.Path() != destination.Path() {
				return errors.Wrapf(errors.ErrType, "want %q message, got %q", destination.Path(), raw.Path())
			}
			if err := destination.Unmarshal(raw.Data); err != nil {
				return errors.Wrapf(errors.ErrMsg, "cannot decode %q: %s", raw.Path(), err)
			}
			if err := destination.Validate(); err != nil {
				return errors.Wrap(err, "invalid message")
			}
			return nil
		}
	}

	// Reflection is used to support any implementation of the Msg
	// interface. This function is expected to be called with the
	// destination being a pointer to the concrete message type.
	v := reflect.ValueOf(destination)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.Wrap(errors.ErrType, "destination must be a non nil pointer")
	}
	mv := reflect.ValueOf(msg)
	if mv.Kind() == reflect.Ptr {
		mv = mv.Elem()
	}
	if !mv.Type().AssignableTo(v.Elem().Type()) {
		return errors.Wrapf(errors.ErrType, "want %T message, got %T", destination, msg)
	}
	v.Elem().Set(mv)

	if err := destination.Validate(); err != nil {
		return errors.Wrap(err, "invalid message")
	}
	return nil
}
