package gconf

import (
	"reflect"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
)

// OwnedConfig must have an Owner field. A configuration update message must
// be issued by the owner in order to be authorized to apply the change.
type OwnedConfig interface {
	Configuration
	GetOwner() deedhouse.Address
}

// UpdateConfigurationHandler applies a configuration patch message.
type UpdateConfigurationHandler struct {
	pkg string
	// We require this type to load the data.
	config    OwnedConfig
	initAdmin func(deedhouse.ReadOnlyKVStore) (deedhouse.Address, error)
	// newMsg returns an empty instance of the patch message. It is used
	// to decode serialized messages.
	newMsg func() deedhouse.Msg
}

var _ deedhouse.Handler = (*UpdateConfigurationHandler)(nil)

// NewUpdateConfigurationHandler returns a message handler that process
// configuration patch message.
//
// To pass authentication step, each message must be issued by the current
// configuration owner. The owner is compared with the predecessor of the
// call, so a governance contract can own the configuration as well as a
// person.
//
// When the configuration does not exist yet, the optional initConfAdmin is
// used to authenticate its creation. Once a configuration is created,
// initConfAdmin is not used anymore.
func NewUpdateConfigurationHandler(
	pkg string,
	config OwnedConfig,
	newMsg func() deedhouse.Msg,
	initConfAdmin func(deedhouse.ReadOnlyKVStore) (deedhouse.Address, error),
) UpdateConfigurationHandler {
	return UpdateConfigurationHandler{
		pkg:       pkg,
		config:    config,
		initAdmin: initConfAdmin,
		newMsg:    newMsg,
	}
}

func (h UpdateConfigurationHandler) Deliver(ctx deedhouse.Context, store deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	if err := h.applyTx(ctx, store, tx); err != nil {
		return nil, err
	}
	return &deedhouse.DeliverResult{Log: h.pkg + " configuration updated"}, nil
}

func (h UpdateConfigurationHandler) applyTx(ctx deedhouse.Context, store deedhouse.KVStore, tx deedhouse.Tx) error {
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return err
	}

	// Always decode into a fresh instance so that no state is shared
	// between calls.
	config := reflect.New(reflect.TypeOf(h.config).Elem()).Interface().(OwnedConfig)

	switch err := Load(store, h.pkg, config); {
	case err == nil:
		owner := config.GetOwner()
		if owner == nil {
			return errors.Wrap(errors.ErrUnauthorized, "configuration has no owner")
		}
		if !owner.Equals(call.Predecessor) {
			return errors.Wrap(errors.ErrUnauthorized, "only the configuration owner can update it")
		}
	case errors.ErrNotFound.Is(err):
		// Configuration entity does not exist. It was not initialized
		// via the genesis and will be created for the first time now.
		if h.initAdmin == nil {
			return errors.Wrap(errors.ErrUnauthorized, "configuration does not exist and cannot be initialized")
		}
		admin, err := h.initAdmin(store)
		if err != nil {
			return errors.Wrap(err, "get init admin")
		}
		if !admin.Equals(call.Predecessor) {
			return errors.Wrap(errors.ErrUnauthorized, "initialization admin required")
		}
	default:
		return errors.Wrap(err, "load current configuration")
	}

	payload, err := h.patchPayload(tx)
	if err != nil {
		return errors.Wrap(err, "cannot get message payload")
	}
	if err := patch(config, payload); err != nil {
		return errors.Wrap(err, "cannot patch config with message payload")
	}

	if err := Save(store, h.pkg, config); err != nil {
		return errors.Wrap(err, "cannot save updated config")
	}
	return nil
}

func patch(config OwnedConfig, payload OwnedConfig) error {
	pType := reflect.TypeOf(payload)
	cType := reflect.TypeOf(config)
	if !pType.ConvertibleTo(cType) {
		return errors.Wrap(errors.ErrMsg, "config in message doesn't match store")
	}

	cval := reflect.ValueOf(config).Elem()
	pval := reflect.ValueOf(payload).Elem()

	for i := 0; i < cval.NumField(); i++ {
		got := pval.Field(i)

		// Zero values do not update the original configuration.
		if isZero(got) {
			continue
		}

		cval.Field(i).Set(got)
	}

	return nil
}

// isZero returns true if given value represents a zero value of a given type.
func isZero(val reflect.Value) bool {
	zero := reflect.Zero(val.Type()).Interface()
	return reflect.DeepEqual(val.Interface(), zero)
}

// patchPayload expects the transaction to have a message with "Patch" field of
// the same type as the configuration. Content of this field is extracted and
// returned.
func (h UpdateConfigurationHandler) patchPayload(tx deedhouse.Tx) (OwnedConfig, error) {
	msg := h.newMsg()
	if err := deedhouse.LoadMsg(tx, msg); err != nil {
		return nil, err
	}

	pval := reflect.ValueOf(msg)
	if pval.Kind() != reflect.Ptr || pval.Elem().Kind() != reflect.Struct {
		return nil, errors.Wrapf(errors.ErrInput, "invalid message container value: %T", msg)
	}
	field := pval.Elem().FieldByName("Patch")
	if !field.IsValid() || field.Kind() != reflect.Ptr {
		return nil, errors.Wrap(errors.ErrInput, `"Patch" field is required`)
	}
	if field.IsNil() {
		return nil, errors.Wrap(errors.ErrState, `"Patch" field is required`)
	}
	payload, ok := field.Interface().(OwnedConfig)
	if !ok {
		return nil, errors.Wrap(errors.ErrInput, `"Patch" field is of a wrong type`)
	}
	return payload, nil
}
