package purchase

import (
	"bytes"
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/claimabletokens"
	"github.com/code-payments/content-purchase/pkg/solana/memo"
	"github.com/code-payments/content-purchase/pkg/solana/paymentrouter"
	"github.com/code-payments/content-purchase/pkg/solana/secp256k1"
	"github.com/code-payments/content-purchase/pkg/solana/token"
)

type InstructionKind string

const (
	InstructionKindRecovery     InstructionKind = "recovery"
	InstructionKindTransfer     InstructionKind = "transfer"
	InstructionKindRoute        InstructionKind = "route"
	InstructionKindPurchaseMemo InstructionKind = "purchase_memo"
	InstructionKindLocationMemo InstructionKind = "location_memo"
)

// Description is a decoded view of a purchase transaction.
type Description struct {
	FeePayer   ed25519.PublicKey
	Checkpoint solana.Blockhash
	Order      []InstructionKind

	// Relay path
	Signer           *common.Address
	Authorization    *claimabletokens.TransferMessage
	UserBankTransfer *claimabletokens.DecompiledTransfer

	// Wallet path
	WalletTransfer *token.DecompiledTransferChecked

	Route         *paymentrouter.RouteInstructionArgs
	RouteAccounts *paymentrouter.RouteInstructionAccounts

	PurchaseMemo *paymentrouter.PurchaseMemo
	LocationMemo *string
}

// TransferAmount is the amount moved into the program token account.
func (d *Description) TransferAmount() uint64 {
	switch {
	case d.WalletTransfer != nil:
		return d.WalletTransfer.Amount
	case d.Authorization != nil:
		return d.Authorization.Amount
	}
	return 0
}

func (p *PreparedPurchase) Describe() (*Description, error) {
	return DescribeTransaction(p.Transaction)
}

// DescribeTransaction decodes every instruction of a purchase transaction.
// Recovery signatures are verified against the eth address they embed.
func DescribeTransaction(txn solana.Transaction) (*Description, error) {
	m := txn.Message
	if len(m.Accounts) == 0 {
		return nil, errors.New("transaction has no accounts")
	}

	d := &Description{
		FeePayer:   m.Accounts[0],
		Checkpoint: m.RecentBlockhash,
	}

	for i := range m.Instructions {
		program, err := m.ProgramAt(i)
		if err != nil {
			return nil, err
		}

		switch {
		case bytes.Equal(program, secp256k1.ProgramKey):
			decompiled, err := secp256k1.DecompileInstruction(m, i)
			if err != nil {
				return nil, errors.Wrapf(err, "instruction %d", i)
			}
			if err := decompiled.Verify(); err != nil {
				return nil, errors.Wrapf(err, "instruction %d", i)
			}

			var authorization claimabletokens.TransferMessage
			if err := authorization.Unmarshal(decompiled.Message); err != nil {
				return nil, errors.Wrapf(err, "instruction %d", i)
			}

			d.Signer = &decompiled.EthAddress
			d.Authorization = &authorization
			d.Order = append(d.Order, InstructionKindRecovery)

		case bytes.Equal(program, token.ProgramKey):
			decompiled, err := token.DecompileTransferChecked(m, i)
			if err != nil {
				return nil, errors.Wrapf(err, "instruction %d", i)
			}

			d.WalletTransfer = decompiled
			d.Order = append(d.Order, InstructionKindTransfer)

		case bytes.Equal(program, claimabletokens.ProgramKey):
			decompiled, err := claimabletokens.DecompileTransfer(m, i)
			if err != nil {
				return nil, errors.Wrapf(err, "instruction %d", i)
			}

			d.UserBankTransfer = decompiled
			d.Order = append(d.Order, InstructionKindTransfer)

		case bytes.Equal(program, paymentrouter.PROGRAM_ID):
			args, accounts, err := paymentrouter.DecompileRouteInstruction(m, i)
			if err != nil {
				return nil, errors.Wrapf(err, "instruction %d", i)
			}

			d.Route = args
			d.RouteAccounts = accounts
			d.Order = append(d.Order, InstructionKindRoute)

		case memo.IsMemoProgram(program):
			decompiled, err := memo.DecompileMemo(m, i)
			if err != nil {
				return nil, errors.Wrapf(err, "instruction %d", i)
			}

			if d.PurchaseMemo == nil {
				if parsed, err := paymentrouter.ParsePurchaseMemo(string(decompiled.Data)); err == nil {
					d.PurchaseMemo = parsed
					d.Order = append(d.Order, InstructionKindPurchaseMemo)
					continue
				}
			}

			value := string(decompiled.Data)
			d.LocationMemo = &value
			d.Order = append(d.Order, InstructionKindLocationMemo)

		default:
			return nil, errors.Errorf("instruction %d: unexpected program", i)
		}
	}

	return d, nil
}
