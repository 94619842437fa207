package auction

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/gconf"
)

const packageName = "auction"

const (
	// DefaultMinWindow is the minimal number of blocks an auction is open
	// unless configured otherwise.
	DefaultMinWindow = 100
	// DefaultWindow is the number of blocks an auction is open when no
	// close height was requested.
	DefaultWindow = 600000
	// DefaultRevealWindow is the number of blocks after close during which
	// sealed bids can be revealed.
	DefaultRevealWindow = 260000
)

// Configuration is the coordinator configuration. Owner is the governance
// identity that can update it.
type Configuration struct {
	Owner deedhouse.Address `json:"owner"`
	// Custodian holds the assets that are auctioned.
	Custodian deedhouse.Address `json:"custodian"`
	// Cron is optional. When set, finalization of every auction is
	// scheduled with it.
	Cron deedhouse.Address `json:"cron"`
	// FeeCollector receives the fees and forfeited deposits.
	FeeCollector deedhouse.Address `json:"fee_collector"`
	// BaseFee is kept from every losing bid.
	BaseFee uint64 `json:"base_fee"`
	// MinWindow is the minimal number of blocks an auction is open.
	MinWindow int64 `json:"min_window"`
	// DefaultWindow is used when no close height is requested.
	DefaultWindow int64 `json:"default_window"`
	// RevealWindow is the length of the reveal phase of sealed auctions.
	RevealWindow int64 `json:"reveal_window"`
	// Scheme is the commitment scheme of sealed bids.
	Scheme string `json:"scheme"`
}

var _ gconf.OwnedConfig = (*Configuration)(nil)

func (c *Configuration) GetOwner() deedhouse.Address {
	return c.Owner
}

func (c *Configuration) Marshal() ([]byte, error) {
	return deedhouse.Marshal(c)
}

func (c *Configuration) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, c)
}

func (c *Configuration) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Owner", c.Owner.Validate())
	errs = errors.AppendField(errs, "Custodian", c.Custodian.Validate())
	if len(c.Cron) != 0 {
		errs = errors.AppendField(errs, "Cron", c.Cron.Validate())
	}
	errs = errors.AppendField(errs, "FeeCollector", c.FeeCollector.Validate())
	if c.MinWindow < 1 {
		errs = errors.AppendField(errs, "MinWindow", errors.ErrInput)
	}
	if c.DefaultWindow < c.MinWindow {
		errs = errors.AppendField(errs, "DefaultWindow", errors.Wrap(errors.ErrInput, "shorter than minimal window"))
	}
	if c.RevealWindow < 1 {
		errs = errors.AppendField(errs, "RevealWindow", errors.ErrInput)
	}
	if !IsKnownScheme(c.Scheme) {
		errs = errors.AppendField(errs, "Scheme", errors.Wrapf(errors.ErrInput, "unknown scheme %q", c.Scheme))
	}
	return errs
}

func loadConf(db gconf.ReadStore) (*Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, packageName, &conf); err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	return &conf, nil
}

// UpdateConfigurationMsg patches the configuration. Zero value fields are
// not changed.
type UpdateConfigurationMsg struct {
	Patch *Configuration
}

var _ deedhouse.Msg = (*UpdateConfigurationMsg)(nil)

func (UpdateConfigurationMsg) Path() string {
	return pathUpdateConfiguration
}

func (m *UpdateConfigurationMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *UpdateConfigurationMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *UpdateConfigurationMsg) Validate() error {
	if m.Patch == nil {
		return errors.Field("Patch", errors.ErrEmpty, "required")
	}
	return nil
}

// Initializer loads the coordinator configuration from genesis options.
// Missing windows and scheme are set to their defaults.
type Initializer struct{}

var _ deedhouse.Initializer = (*Initializer)(nil)

func (*Initializer) FromGenesis(opts deedhouse.Options, db deedhouse.KVStore) error {
	conf := Configuration{
		MinWindow:     DefaultMinWindow,
		DefaultWindow: DefaultWindow,
		RevealWindow:  DefaultRevealWindow,
		Scheme:        SchemeSHA256,
	}
	return gconf.InitConfig(db, opts, packageName, &conf)
}
