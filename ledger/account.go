package ledger

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/orm"
)

// Account is a ledger account. Key is the only access key that can sign
// transactions for this account. An account without a key can act only
// through its component.
type Account struct {
	Name      string
	Address   deedhouse.Address
	Key       deedhouse.Credential
	Balance   uint64
	Nonce     uint64
	Component string
}

var _ orm.Model = (*Account)(nil)

func (a *Account) Marshal() ([]byte, error) {
	return deedhouse.Marshal(a)
}

func (a *Account) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, a)
}

func (a *Account) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Address", a.Address.Validate())
	if len(a.Key) != 0 {
		errs = errors.AppendField(errs, "Key", a.Key.Validate())
	}
	if a.Name == "" {
		errs = errors.AppendField(errs, "Name", errors.ErrEmpty)
	}
	return errs
}

func accountName(m orm.Model) ([]byte, error) {
	a, ok := m.(*Account)
	if !ok {
		return nil, errors.Wrapf(errors.ErrType, "%T", m)
	}
	return []byte(a.Name), nil
}

var accounts = orm.NewModelBucket("accounts", &Account{},
	orm.WithIndex("name", accountName, true),
)

func loadAccount(db deedhouse.ReadOnlyKVStore, addr deedhouse.Address) (*Account, error) {
	var a Account
	if err := accounts.One(db, addr, &a); err != nil {
		return nil, errors.Wrapf(err, "account %s", addr)
	}
	return &a, nil
}

func saveAccount(db deedhouse.KVStore, a *Account) error {
	return accounts.Put(db, a.Address, a)
}

func credit(db deedhouse.KVStore, addr deedhouse.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	a, err := loadAccount(db, addr)
	if err != nil {
		return err
	}
	if a.Balance+amount < a.Balance {
		return errors.Wrapf(errors.ErrOverflow, "balance of %s", addr)
	}
	a.Balance += amount
	return saveAccount(db, a)
}

func debit(db deedhouse.KVStore, addr deedhouse.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	a, err := loadAccount(db, addr)
	if err != nil {
		return err
	}
	if a.Balance < amount {
		return errors.Wrapf(errors.ErrInsufficientAmount, "%s has %d, needs %d", addr, a.Balance, amount)
	}
	a.Balance -= amount
	return saveAccount(db, a)
}
