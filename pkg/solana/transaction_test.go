package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Legacy transaction produced by the Solana SDK for a single instruction
// signed by a key derived from a fixed seed.
const sdkGeneratedTransaction = "ATMfBMZ8phHEheLph8K9TJhRKhnE4qNZvWiXdUdJRmlTCRsQjWmW2CkQJeRHBCcsqFm2gynjL40M9mTe0Dxp4QIBAAEDfEya6wnC7f3Cv53qnOEywwIJ928rIdqAlfXYI1adXroBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

func TestTransaction_MatchesSDK(t *testing.T) {
	key := ed25519.NewKeyFromSeed([]byte{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75})
	program := ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4, 2, 2, 2}
	to := ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}

	txn := NewTransaction(
		public(key),
		NewInstruction(program, []byte{1, 2, 3}, NewAccountMeta(public(key), true), NewAccountMeta(to, false)),
	)
	require.NoError(t, txn.Sign(key))
	assert.Equal(t, sdkGeneratedTransaction, txn.ToBase64())

	decoded, err := base64.StdEncoding.DecodeString(sdkGeneratedTransaction)
	require.NoError(t, err)

	var parsed Transaction
	require.NoError(t, parsed.Unmarshal(decoded))
	assert.Equal(t, txn.Signatures, parsed.Signatures)
	assert.Equal(t, decoded, parsed.Marshal())
}

func TestTransaction_AccountOrdering(t *testing.T) {
	keys := generateKeys(t, 8)
	payer := public(keys[0])
	authority := public(keys[1])
	source := public(keys[2])
	destination := public(keys[3])
	mint := public(keys[4])
	transferProgram := public(keys[5])
	memoProgram := public(keys[6])
	observer := public(keys[7])

	txn := NewTransaction(
		payer,
		NewInstruction(memoProgram, []byte("memo")),
		NewInstruction(
			transferProgram,
			[]byte{12},
			NewReadonlyAccountMeta(mint, false),
			NewAccountMeta(destination, false),
			NewReadonlyAccountMeta(authority, true),
			NewAccountMeta(source, false),
			NewReadonlyAccountMeta(observer, false),
			// Repeated with more permissions
			NewAccountMeta(observer, false),
		),
	)

	m := txn.Message
	assert.EqualValues(t, 2, m.Header.NumSignatures)
	assert.EqualValues(t, 1, m.Header.NumReadonlySigned)
	assert.EqualValues(t, 3, m.Header.NumReadOnly)
	require.Len(t, m.Accounts, 8)
	require.Len(t, txn.Signatures, 2)

	assert.Equal(t, payer, m.Accounts[0])
	assert.Equal(t, authority, m.Accounts[1])
	assertSorted(t, m.Accounts[2:5], destination, source, observer)
	assertSorted(t, m.Accounts[5:6], mint)
	assertSorted(t, m.Accounts[6:8], transferProgram, memoProgram)

	for i := range m.Accounts {
		assert.Equal(t, i < 2, m.IsSigner(i), i)
		assert.Equal(t, i == 0 || (i >= 2 && i < 5), m.IsWritable(i), i)
	}

	program, err := m.ProgramAt(1)
	require.NoError(t, err)
	assert.Equal(t, transferProgram, program)
	assert.Empty(t, m.Instructions[0].Accounts)
	require.Len(t, m.Instructions[1].Accounts, 6)
	assert.Equal(t, m.Instructions[1].Accounts[4], m.Instructions[1].Accounts[5])
	for i, meta := range []ed25519.PublicKey{mint, destination, authority, source, observer} {
		assert.Equal(t, meta, m.Accounts[m.Instructions[1].Accounts[i]])
	}

	_, err = m.ProgramAt(2)
	assert.Error(t, err)
}

func assertSorted(t *testing.T, actual []ed25519.PublicKey, expected ...ed25519.PublicKey) {
	require.Len(t, actual, len(expected))
	for _, key := range expected {
		assert.Contains(t, actual, key)
	}
	for i := 1; i < len(actual); i++ {
		assert.True(t, bytes.Compare(actual[i-1], actual[i]) < 0)
	}
}

func TestTransaction_PayerAlsoInInstruction(t *testing.T) {
	keys := generateKeys(t, 2)

	txn := NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), nil, NewReadonlyAccountMeta(public(keys[0]), false)),
	)
	assert.Len(t, txn.Message.Accounts, 2)
	assert.EqualValues(t, 1, txn.Message.Header.NumSignatures)
	assert.True(t, txn.Message.IsWritable(0))
	assert.Equal(t, []byte{0}, txn.Message.Instructions[0].Accounts)
}

func TestTransaction_RoundTrip(t *testing.T) {
	keys := generateKeys(t, 4)

	txn := NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), []byte("first"), NewAccountMeta(public(keys[2]), false)),
		NewInstruction(public(keys[1]), []byte("second"), NewReadonlyAccountMeta(public(keys[3]), true)),
	)
	txn.SetBlockhash(Blockhash{1, 2, 3})
	require.NoError(t, txn.Sign(keys[0], keys[3]))

	var parsed Transaction
	require.NoError(t, parsed.Unmarshal(txn.Marshal()))
	assert.Equal(t, txn, parsed)
	assert.Equal(t, public(keys[0]), parsed.FeePayer())
	assert.Equal(t, txn.Signatures[0][:], parsed.Signature())

	for i, sig := range parsed.Signatures {
		assert.True(t, ed25519.Verify(parsed.Message.Accounts[i], parsed.Message.Marshal(), sig[:]))
	}
}

func TestTransaction_EmptyAccount(t *testing.T) {
	keys := generateKeys(t, 2)

	txn := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), []byte{1}, NewAccountMeta(nil, false)))
	require.NoError(t, txn.Sign(keys[0]))

	for _, account := range txn.Message.Accounts {
		assert.Len(t, account, ed25519.PublicKeySize)
	}

	var parsed Transaction
	assert.NoError(t, parsed.Unmarshal(txn.Marshal()))
}

func TestTransaction_Sign(t *testing.T) {
	keys := generateKeys(t, 4)

	txn := NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), nil, NewAccountMeta(public(keys[2]), false)),
	)

	assert.Error(t, txn.Sign(keys[3]))
	assert.Error(t, txn.Sign(keys[2]))
	assert.Equal(t, Signature{}, txn.Signatures[0])

	require.NoError(t, txn.Sign(keys[0]))
	assert.NotEqual(t, Signature{}, txn.Signatures[0])
}

func TestMessage_UnmarshalInvalid(t *testing.T) {
	keys := generateKeys(t, 2)

	txn := NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), []byte{1}, NewAccountMeta(public(keys[0]), true)),
	)

	var m Message
	assert.Error(t, m.Unmarshal(nil))

	versioned := txn.Message.Marshal()
	versioned[0] |= versionPrefixMask
	assert.Equal(t, ErrUnsupportedMessageVersion, m.Unmarshal(versioned))

	encoded := txn.Message.Marshal()
	assert.Error(t, m.Unmarshal(encoded[:len(encoded)-1]))

	badProgram := txn
	badProgram.Message.Instructions = []CompiledInstruction{{ProgramIndex: 2, Data: []byte{1}}}
	assert.Error(t, m.Unmarshal(badProgram.Message.Marshal()))

	badAccount := txn
	badAccount.Message.Instructions = []CompiledInstruction{{ProgramIndex: 1, Accounts: []byte{0, 5}}}
	assert.Error(t, m.Unmarshal(badAccount.Message.Marshal()))

	var parsed Transaction
	assert.Error(t, parsed.Unmarshal([]byte{2, 0}))
}

func TestTransaction_CheckSize(t *testing.T) {
	keys := generateKeys(t, 2)

	txn := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), make([]byte, 64)))
	assert.NoError(t, txn.CheckSize())
	assert.Equal(t, len(txn.Marshal()), txn.Size())

	overhead := txn.Size() - 64
	txn = NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), make([]byte, MaxTransactionSize-overhead-1)))
	assert.NoError(t, txn.CheckSize())

	txn = NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), make([]byte, MaxTransactionSize)))
	assert.True(t, errors.Is(txn.CheckSize(), ErrTransactionTooLarge))
}

func TestTransaction_String(t *testing.T) {
	keys := generateKeys(t, 2)

	txn := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), []byte{1}))
	txn.SetBlockhash(Blockhash{9})

	s := txn.String()
	assert.Contains(t, s, Blockhash{9}.String())
	assert.Contains(t, s, "NumSignatures: 1")
}

func public(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

func generateKeys(t *testing.T, n int) []ed25519.PrivateKey {
	keys := make([]ed25519.PrivateKey, n)
	for i := range keys {
		_, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = priv
	}
	return keys
}
