package ledger

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/crypto"
	"github.com/iov-one/deedhouse/errors"
)

// Tx is a signed request of an account holder to call a component of the
// receiver account.
type Tx struct {
	Signer    deedhouse.Address
	Receiver  deedhouse.Address
	Msg       deedhouse.RawMsg
	Deposit   uint64
	Nonce     uint64
	Signature []byte
}

var _ deedhouse.Tx = (*Tx)(nil)

// NewTx returns an unsigned transaction carrying given message.
func NewTx(signer, receiver deedhouse.Address, msg deedhouse.Msg, deposit, nonce uint64) (*Tx, error) {
	raw, err := deedhouse.NewRawMsg(msg)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Signer:   signer,
		Receiver: receiver,
		Msg:      *raw,
		Deposit:  deposit,
		Nonce:    nonce,
	}, nil
}

// GetMsg implements deedhouse.Tx.
func (tx *Tx) GetMsg() (deedhouse.Msg, error) {
	msg := tx.Msg
	return &msg, nil
}

func (tx *Tx) Marshal() ([]byte, error) {
	return deedhouse.Marshal(tx)
}

func (tx *Tx) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, tx)
}

// Validate checks the transaction format. It does not verify the signature.
func (tx *Tx) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Signer", tx.Signer.Validate())
	errs = errors.AppendField(errs, "Receiver", tx.Receiver.Validate())
	errs = errors.AppendField(errs, "Msg", tx.Msg.Validate())
	if tx.Nonce == 0 {
		errs = errors.AppendField(errs, "Nonce", errors.ErrInput)
	}
	return errs
}

// SignBytes returns the bytes that are signed by the account holder. The
// chain ID is included to prevent replaying a transaction on another ledger.
func (tx *Tx) SignBytes(chainID string) ([]byte, error) {
	unsigned := *tx
	unsigned.Signature = nil
	raw, err := unsigned.Marshal()
	if err != nil {
		return nil, err
	}
	return append([]byte(chainID+"/"), raw...), nil
}

// Sign sets the signature of the transaction.
func (tx *Tx) Sign(key crypto.Signer, chainID string) error {
	bz, err := tx.SignBytes(chainID)
	if err != nil {
		return errors.Wrap(err, "sign bytes")
	}
	sig, err := key.Sign(bz)
	if err != nil {
		return errors.Wrap(err, "sign")
	}
	tx.Signature = sig
	return nil
}
