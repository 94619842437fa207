package deedhouse

import (
	"github.com/iov-one/deedhouse/errors"
	amino "github.com/tendermint/go-amino"
)

// cdc is the binary codec used for models, messages and promise payloads.
// Persisted types are plain structs so no registration is needed.
var cdc = amino.NewCodec()

// Marshal serializes a value with the binary codec. Models and messages use
// it to implement the Persistent interface.
func Marshal(o interface{}) ([]byte, error) {
	bz, err := cdc.MarshalBinaryBare(o)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrType, "marshal %T: %s", o, err)
	}
	return bz, nil
}

// Unmarshal deserializes binary codec data into given pointer.
func Unmarshal(bz []byte, ptr interface{}) error {
	if len(bz) == 0 {
		return nil
	}
	if err := cdc.UnmarshalBinaryBare(bz, ptr); err != nil {
		return errors.Wrapf(errors.ErrType, "unmarshal %T: %s", ptr, err)
	}
	return nil
}

// MustMarshal is like Marshal, but panics instead of returning an error.
// Only use when you control the value being passed in.
func MustMarshal(o interface{}) []byte {
	bz, err := Marshal(o)
	if err != nil {
		panic(err)
	}
	return bz
}
