package capsule

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/app"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/ledger"
	"github.com/iov-one/deedhouse/orm"
)

// RegisterFunc returns the message that registers an asset with the
// custodian.
type RegisterFunc func(underwriter deedhouse.Address) deedhouse.Msg

// New returns a capsule component. register is used to build the custody
// registration issued on initialization.
func New(register RegisterFunc) deedhouse.Handler {
	r := app.NewRouter()
	RegisterRoutes(r, register)
	return r
}

// RegisterRoutes registers all capsule handlers.
func RegisterRoutes(r deedhouse.Registry, register RegisterFunc) {
	b := NewBucket()
	r.Handle(pathInit, InitHandler{bucket: b, register: register})
	r.Handle(pathInstall, KeyHandler{bucket: b})
	r.Handle(pathRevert, KeyHandler{bucket: b, revert: true})
	r.Handle(pathConfirm, ConfirmHandler{bucket: b})
	r.Handle(pathRegistered, RegisteredHandler{bucket: b})
	r.Handle(pathQuery, QueryHandler{bucket: b})
}

// InitHandler records the owner credential and registers the asset with
// the custodian.
type InitHandler struct {
	bucket   orm.ModelBucket
	register RegisterFunc
}

var _ deedhouse.Handler = InitHandler{}

func (h InitHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg InitMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	if !call.IsSelf() || !call.Signer.Equals(call.Current) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "capsule must be initialized by the asset account")
	}

	switch c, err := Load(db, h.bucket); {
	case err == nil:
		if c.IsPending() {
			return nil, errors.Wrap(errors.ErrState, "key replacement in progress")
		}
		if c.Registering {
			return nil, errors.Wrap(errors.ErrState, "registration in progress")
		}
		if !c.Live.Equals(call.SignerKey) {
			return nil, errors.Wrap(errors.ErrConflict, "asset key is held by the custodian")
		}
	case !errors.ErrNotFound.Is(err):
		return nil, err
	}

	c := &Capsule{
		Owner:       call.SignerKey,
		Live:        call.SignerKey,
		Custodian:   msg.Custodian,
		Underwriter: msg.Underwriter,
		Registering: true,
	}
	if err := h.bucket.Put(db, capsuleKey, c); err != nil {
		return nil, errors.Wrap(err, "cannot store capsule")
	}
	deedhouse.GetLogger(ctx).Info("capsule initialized", "custodian", msg.Custodian, "underwriter", msg.Underwriter)

	return &deedhouse.DeliverResult{
		Promises: []deedhouse.Promise{{
			Receiver: msg.Custodian,
			Msg:      h.register(msg.Underwriter),
			Callback: &registeredMsg{},
		}},
	}, nil
}

// KeyHandler starts a key replacement requested by the custodian. The new
// credential is either given in the message or, for revert, the recorded
// owner credential.
type KeyHandler struct {
	bucket orm.ModelBucket
	revert bool
}

var _ deedhouse.Handler = KeyHandler{}

func (h KeyHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	c, err := Load(db, h.bucket)
	if err != nil {
		return nil, err
	}
	if !c.Custodian.Equals(call.Predecessor) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "only the custodian can replace the key")
	}
	if c.IsPending() {
		return nil, errors.Wrap(errors.ErrState, "key replacement in progress")
	}

	next := c.Owner
	if h.revert {
		var msg RevertMsg
		if err := deedhouse.LoadMsg(tx, &msg); err != nil {
			return nil, errors.Wrap(err, "load msg")
		}
	} else {
		var msg InstallMsg
		if err := deedhouse.LoadMsg(tx, &msg); err != nil {
			return nil, errors.Wrap(err, "load msg")
		}
		next = msg.Credential
	}

	c.Pending = &Change{Credential: next, Revert: h.revert}
	if err := h.bucket.Put(db, capsuleKey, c); err != nil {
		return nil, errors.Wrap(err, "cannot store capsule")
	}

	// The result of the key replacement is returned to the custodian,
	// after this capsule confirmed it.
	return &deedhouse.DeliverResult{
		Promises: []deedhouse.Promise{{
			Receiver: call.Current,
			Msg:      &ledger.SetKeyMsg{Credential: next},
			Callback: &confirmMsg{},
			Return:   true,
		}},
	}, nil
}

// ConfirmHandler commits or rolls back the pending key replacement.
type ConfirmHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = ConfirmHandler{}

func (h ConfirmHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	res, err := deedhouse.RequireCallback(ctx)
	if err != nil {
		return nil, err
	}
	c, err := Load(db, h.bucket)
	if err != nil {
		return nil, err
	}
	if !c.IsPending() {
		return nil, errors.Wrap(errors.ErrState, "no key replacement in progress")
	}

	logger := deedhouse.GetLogger(ctx)
	if res.Err != nil {
		logger.Error("key replacement failed, rolled back", "err", res.Err)
	} else {
		c.Live = c.Pending.Credential
		logger.Info("key replaced", "revert", c.Pending.Revert)
	}
	c.Pending = nil
	if err := h.bucket.Put(db, capsuleKey, c); err != nil {
		return nil, errors.Wrap(err, "cannot store capsule")
	}
	return &deedhouse.DeliverResult{}, nil
}

// RegisteredHandler is the callback of the custody registration. A failed
// registration removes the capsule state so that it can be initialized
// again.
type RegisteredHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = RegisteredHandler{}

func (h RegisteredHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	res, err := deedhouse.RequireCallback(ctx)
	if err != nil {
		return nil, err
	}
	c, err := Load(db, h.bucket)
	if err != nil {
		return nil, err
	}
	c.Registering = false

	logger := deedhouse.GetLogger(ctx)
	if res.Err == nil {
		logger.Info("asset registered with custodian")
		if err := h.bucket.Put(db, capsuleKey, c); err != nil {
			return nil, errors.Wrap(err, "cannot store capsule")
		}
		return &deedhouse.DeliverResult{}, nil
	}

	logger.Error("custody registration failed", "err", res.Err)
	if c.IsPending() || !c.Live.Equals(c.Owner) {
		// The custodian still holds the key.
		if err := h.bucket.Put(db, capsuleKey, c); err != nil {
			return nil, errors.Wrap(err, "cannot store capsule")
		}
		return &deedhouse.DeliverResult{}, nil
	}
	if err := h.bucket.Delete(db, capsuleKey); err != nil {
		return nil, errors.Wrap(err, "cannot delete capsule")
	}
	return &deedhouse.DeliverResult{Log: "capsule reset"}, nil
}

// QueryHandler returns the serialized capsule state.
type QueryHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = QueryHandler{}

func (h QueryHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	c, err := Load(db, h.bucket)
	if err != nil {
		return nil, err
	}
	raw, err := c.Marshal()
	if err != nil {
		return nil, err
	}
	return &deedhouse.DeliverResult{Data: raw}, nil
}
