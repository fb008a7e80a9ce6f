package solana

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the string key of a rejected transaction, as reported
// by the RPC node in the "err" field.
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse            TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound         TransactionErrorKey = "AccountNotFound"
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorDuplicateSignature      TransactionErrorKey = "DuplicateSignature"
	TransactionErrorBlockhashNotFound       TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError        TransactionErrorKey = "InstructionError"
	TransactionErrorSignatureFailure        TransactionErrorKey = "SignatureFailure"
	TransactionErrorSanitizeFailure         TransactionErrorKey = "SanitizeFailure"
)

type InstructionErrorKey string

const (
	InstructionErrorInvalidArgument          InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidAccountData       InstructionErrorKey = "InvalidAccountData"
	InstructionErrorInsufficientFunds        InstructionErrorKey = "InsufficientFunds"
	InstructionErrorMissingRequiredSignature InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorCustom                   InstructionErrorKey = "Custom"
)

// InstructionError identifies the instruction that failed a transaction.
type InstructionError struct {
	Index int
	Key   InstructionErrorKey

	// Set when Key is InstructionErrorCustom
	Code *uint32
}

func (e InstructionError) Error() string {
	if e.Code != nil {
		return fmt.Sprintf("instruction %d failed: custom program error 0x%x", e.Index, *e.Code)
	}
	return fmt.Sprintf("instruction %d failed: %s", e.Index, e.Key)
}

// TransactionError is a transaction rejected by the cluster.
type TransactionError struct {
	Key         TransactionErrorKey
	Instruction *InstructionError

	raw json.RawMessage
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	raw, _ := json.Marshal(string(key))
	return &TransactionError{Key: key, raw: raw}
}

func (e *TransactionError) Error() string {
	if e.Instruction != nil {
		return e.Instruction.Error()
	}
	return string(e.Key)
}

// ErrorKey returns the top level error key.
func (e *TransactionError) ErrorKey() TransactionErrorKey {
	return e.Key
}

// Raw returns the error exactly as the RPC node reported it.
func (e *TransactionError) Raw() json.RawMessage {
	return e.raw
}

// ParseTransactionError parses the "err" value of an RPC response. A nil
// error is returned for a null or empty value.
//
// The value is either a bare key, such as "BlockhashNotFound", or a single
// entry object, such as {"InstructionError":[2,{"Custom":3}]}.
func ParseTransactionError(raw json.RawMessage) (*TransactionError, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var key string
	if err := json.Unmarshal(raw, &key); err == nil {
		return &TransactionError{Key: TransactionErrorKey(key), raw: raw}, nil
	}

	var entry map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, errors.Wrap(err, "unexpected transaction error format")
	}
	if len(entry) != 1 {
		return nil, errors.Errorf("invalid transaction error size: %d", len(entry))
	}

	txErr := &TransactionError{raw: raw}
	for k, v := range entry {
		txErr.Key = TransactionErrorKey(k)
		if txErr.Key != TransactionErrorInstructionError {
			continue
		}

		instructionErr, err := parseInstructionError(v)
		if err != nil {
			return nil, err
		}
		txErr.Instruction = instructionErr
	}
	return txErr, nil
}

func parseInstructionError(raw json.RawMessage) (*InstructionError, error) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return nil, errors.Wrap(err, "unexpected instruction error format")
	}
	if len(tuple) != 2 {
		return nil, errors.Errorf("invalid instruction error tuple size: %d", len(tuple))
	}

	var e InstructionError
	if err := json.Unmarshal(tuple[0], &e.Index); err != nil {
		return nil, errors.Wrap(err, "invalid instruction index")
	}

	var key string
	if err := json.Unmarshal(tuple[1], &key); err == nil {
		e.Key = InstructionErrorKey(key)
		return &e, nil
	}

	var custom struct {
		Custom *uint32 `json:"Custom"`
	}
	if err := json.Unmarshal(tuple[1], &custom); err != nil || custom.Custom == nil {
		return nil, errors.Errorf("unhandled instruction error: %s", tuple[1])
	}
	e.Key = InstructionErrorCustom
	e.Code = custom.Custom
	return &e, nil
}

// parseRPCError extracts the transaction error carried in the data of a
// preflight failure, if any.
func parseRPCError(rpcErr *jsonrpc.RPCError) (*TransactionError, error) {
	if rpcErr == nil || rpcErr.Data == nil {
		return nil, nil
	}

	encoded, err := json.Marshal(rpcErr.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode rpc error data")
	}

	var data struct {
		Err json.RawMessage `json:"err"`
	}
	if err := json.Unmarshal(encoded, &data); err != nil {
		return nil, errors.Wrap(err, "unexpected rpc error data")
	}
	return ParseTransactionError(data.Err)
}

// IsBlockhashNotFound reports whether err, anywhere in its chain, is a
// transaction rejected for referencing an unknown or expired blockhash.
func IsBlockhashNotFound(err error) bool {
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return txErr.Key == TransactionErrorBlockhashNotFound
	}
	return false
}
