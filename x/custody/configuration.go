package custody

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/gconf"
)

const packageName = "custody"

// Configuration is the custodian configuration. Owner is the governance
// identity that can update it.
type Configuration struct {
	Owner deedhouse.Address `json:"owner"`
	// Coordinator is the auction coordinator. It can close a custody and
	// revert it on behalf of the underwriter.
	Coordinator deedhouse.Address `json:"coordinator"`
	// Credential is installed on every asset taken into custody.
	Credential deedhouse.Credential `json:"credential"`
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
	errs = errors.AppendField(errs, "Coordinator", c.Coordinator.Validate())
	errs = errors.AppendField(errs, "Credential", c.Credential.Validate())
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
	if len(m.Patch.Credential) != 0 {
		return errors.Field("Patch.Credential", m.Patch.Credential.Validate(), "")
	}
	return nil
}

// Initializer fulfils the Initializer interface to load the custodian
// configuration from genesis options.
type Initializer struct{}

var _ deedhouse.Initializer = (*Initializer)(nil)

// FromGenesis loads the configuration from the "conf" options.
func (*Initializer) FromGenesis(opts deedhouse.Options, db deedhouse.KVStore) error {
	return gconf.InitConfig(db, opts, packageName, &Configuration{})
}
