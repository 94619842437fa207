package custody

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/app"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/gconf"
	"github.com/iov-one/deedhouse/orm"
	"github.com/iov-one/deedhouse/x/capsule"
)

// Custodian is the custodian component.
type Custodian struct {
	*app.Router
	Initializer
}

var (
	_ deedhouse.Handler     = (*Custodian)(nil)
	_ deedhouse.Initializer = (*Custodian)(nil)
)

// New returns a custodian component with all routes registered.
func New() *Custodian {
	c := &Custodian{Router: app.NewRouter()}
	RegisterRoutes(c.Router)
	return c
}

// RegisterRoutes registers all custodian handlers.
func RegisterRoutes(r deedhouse.Registry) {
	b := NewBucket()
	r.Handle(pathRegister, RegisterHandler{bucket: b})
	r.Handle(pathGetUnderwriter, GetUnderwriterHandler{bucket: b})
	r.Handle(pathRevert, RevertHandler{bucket: b})
	r.Handle(pathClose, CloseHandler{bucket: b})
	r.Handle(pathLocked, LockedHandler{bucket: b})
	r.Handle(pathReleased, ReleasedHandler{bucket: b})
	r.Handle(pathGet, GetHandler{bucket: b})
	r.Handle(pathList, ListHandler{bucket: b})
	r.Handle(pathUpdateConfiguration, gconf.NewUpdateConfigurationHandler(
		packageName,
		&Configuration{},
		func() deedhouse.Msg { return &UpdateConfigurationMsg{} },
		nil,
	))
}

func loadRecord(db deedhouse.ReadOnlyKVStore, b orm.ModelBucket, asset deedhouse.Address) (*Record, error) {
	var r Record
	if err := b.One(db, asset, &r); err != nil {
		if errors.ErrNotFound.Is(err) {
			return nil, errors.Wrap(err, "not in custody")
		}
		return nil, err
	}
	return &r, nil
}

// RegisterHandler creates a custody record for the calling asset and
// installs the custodian credential on its capsule.
type RegisterHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = RegisterHandler{}

func (h RegisterHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg RegisterMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	asset := call.Predecessor
	switch err := h.bucket.Has(db, asset); {
	case err == nil:
		return nil, errors.Wrap(errors.ErrConflict, "already in custody")
	case !errors.ErrNotFound.Is(err):
		return nil, err
	}

	record := &Record{Asset: asset, Underwriter: msg.Underwriter, State: Locking}
	if err := h.bucket.Put(db, asset, record); err != nil {
		return nil, errors.Wrap(err, "cannot store record")
	}
	deedhouse.GetLogger(ctx).Info("custody registered", "asset", asset, "underwriter", msg.Underwriter)

	return &deedhouse.DeliverResult{
		Promises: []deedhouse.Promise{{
			Receiver: asset,
			Msg:      &capsule.InstallMsg{Credential: conf.Credential},
			Callback: &lockedMsg{Asset: asset},
			Return:   true,
		}},
	}, nil
}

// LockedHandler completes the registration. If the custodian credential
// could not be installed, the record is removed.
type LockedHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = LockedHandler{}

func (h LockedHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	res, err := deedhouse.RequireCallback(ctx)
	if err != nil {
		return nil, err
	}
	var msg lockedMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	record, err := loadRecord(db, h.bucket, msg.Asset)
	if err != nil {
		return nil, err
	}
	if record.State != Locking {
		return nil, errors.Wrapf(errors.ErrState, "record is %s", record.State)
	}

	logger := deedhouse.GetLogger(ctx)
	if res.Err != nil {
		logger.Error("custody lock failed", "asset", msg.Asset, "err", res.Err)
		if err := h.bucket.Delete(db, msg.Asset); err != nil {
			return nil, errors.Wrap(err, "cannot delete record")
		}
		return &deedhouse.DeliverResult{Log: "custody registration reverted"}, nil
	}

	record.State = Held
	if err := h.bucket.Put(db, msg.Asset, record); err != nil {
		return nil, errors.Wrap(err, "cannot store record")
	}
	logger.Info("custody held", "asset", msg.Asset)
	return &deedhouse.DeliverResult{}, nil
}

// GetUnderwriterHandler returns the underwriter of a held asset.
type GetUnderwriterHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = GetUnderwriterHandler{}

func (h GetUnderwriterHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg GetUnderwriterMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	var r Record
	switch err := h.bucket.One(db, msg.Asset, &r); {
	case err == nil:
		if r.State != Held {
			return &deedhouse.DeliverResult{}, nil
		}
		return &deedhouse.DeliverResult{Data: r.Underwriter}, nil
	case errors.ErrNotFound.Is(err):
		return &deedhouse.DeliverResult{}, nil
	default:
		return nil, err
	}
}

// release moves a held record to Releasing and asks the capsule to replace
// the key. The result of the capsule is returned to the caller after the
// released callback.
func release(db deedhouse.KVStore, b orm.ModelBucket, r *Record, msg deedhouse.Msg) (*deedhouse.DeliverResult, error) {
	if r.State != Held {
		return nil, errors.Wrapf(errors.ErrState, "record is %s", r.State)
	}
	r.State = Releasing
	if err := b.Put(db, r.Asset, r); err != nil {
		return nil, errors.Wrap(err, "cannot store record")
	}
	return &deedhouse.DeliverResult{
		Promises: []deedhouse.Promise{{
			Receiver: r.Asset,
			Msg:      msg,
			Callback: &releasedMsg{Asset: r.Asset},
			Return:   true,
		}},
	}, nil
}

// RevertHandler returns an asset to its owner. It can be called by the
// underwriter or by the coordinator.
type RevertHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = RevertHandler{}

func (h RevertHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg RevertMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	record, err := loadRecord(db, h.bucket, msg.Asset)
	if err != nil {
		return nil, err
	}
	if !record.Underwriter.Equals(call.Predecessor) && !conf.Coordinator.Equals(call.Predecessor) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "only the underwriter can revert")
	}
	deedhouse.GetLogger(ctx).Info("custody revert", "asset", msg.Asset, "by", call.Predecessor)
	return release(db, h.bucket, record, &capsule.RevertMsg{})
}

// CloseHandler releases an asset to the auction winner. It can be called
// only by the coordinator.
type CloseHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = CloseHandler{}

func (h CloseHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg CloseMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	if !conf.Coordinator.Equals(call.Predecessor) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "only the coordinator can close")
	}
	record, err := loadRecord(db, h.bucket, msg.Asset)
	if err != nil {
		return nil, err
	}
	record.Winner = msg.Credential
	deedhouse.GetLogger(ctx).Info("custody close", "asset", msg.Asset)
	return release(db, h.bucket, record, &capsule.InstallMsg{Credential: msg.Credential})
}

// ReleasedHandler deletes a released record. If the capsule failed to
// replace the key, the asset stays in custody.
type ReleasedHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = ReleasedHandler{}

func (h ReleasedHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	res, err := deedhouse.RequireCallback(ctx)
	if err != nil {
		return nil, err
	}
	var msg releasedMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	record, err := loadRecord(db, h.bucket, msg.Asset)
	if err != nil {
		return nil, err
	}
	if record.State != Releasing {
		return nil, errors.Wrapf(errors.ErrState, "record is %s", record.State)
	}

	logger := deedhouse.GetLogger(ctx)
	if res.Err != nil {
		logger.Error("custody release failed", "asset", msg.Asset, "err", res.Err)
		record.State = Held
		record.Winner = nil
		if err := h.bucket.Put(db, msg.Asset, record); err != nil {
			return nil, errors.Wrap(err, "cannot store record")
		}
		return &deedhouse.DeliverResult{Log: "custody kept"}, nil
	}

	if err := h.bucket.Delete(db, msg.Asset); err != nil {
		return nil, errors.Wrap(err, "cannot delete record")
	}
	logger.Info("custody released", "asset", msg.Asset)
	return &deedhouse.DeliverResult{}, nil
}

// GetHandler returns the serialized record of an asset.
type GetHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = GetHandler{}

func (h GetHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg GetMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	record, err := loadRecord(db, h.bucket, msg.Asset)
	if err != nil {
		return nil, err
	}
	raw, err := record.Marshal()
	if err != nil {
		return nil, err
	}
	return &deedhouse.DeliverResult{Data: raw}, nil
}

// ListHandler returns all records of an underwriter.
type ListHandler struct {
	bucket orm.ModelBucket
}

var _ deedhouse.Handler = ListHandler{}

func (h ListHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg ListMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	var list RecordList
	if _, err := h.bucket.ByIndex(db, underwriterIndex, msg.Underwriter, &list.Records); err != nil {
		return nil, err
	}
	raw, err := list.Marshal()
	if err != nil {
		return nil, err
	}
	return &deedhouse.DeliverResult{Data: raw}, nil
}
