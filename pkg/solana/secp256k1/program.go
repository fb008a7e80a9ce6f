package secp256k1

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
)

// KeccakSecp256k11111111111111111111111111111
var ProgramKey = ed25519.PublicKey{4, 198, 252, 32, 240, 80, 204, 240, 85, 132, 215, 33, 28, 159, 140, 245, 158, 193, 71, 133, 187, 22, 106, 30, 40, 48, 232, 18, 32, 0, 0, 0}

const (
	EthAddressSize = common.AddressLength
	SignatureSize  = 64

	signatureOffsetsSize = 11
	dataStart            = 1 + signatureOffsetsSize

	ethAddressOffset = dataStart
	signatureOffset  = ethAddressOffset + EthAddressSize
	recoveryIDOffset = signatureOffset + SignatureSize
	messageOffset    = recoveryIDOffset + 1
)

var (
	ErrInvalidSignature = errors.New("invalid secp256k1 signature")
	ErrInvalidData      = errors.New("invalid secp256k1 instruction data")
)

// Instruction creates a secp256k1 signature verification instruction over a
// single signature. All offsets reference the instruction's own data, so
// instructionIndex must be the position of this instruction in the
// transaction.
//
// Reference: https://github.com/solana-labs/solana/blob/master/sdk/src/secp256k1_instruction.rs
func Instruction(ethAddress common.Address, signature []byte, recoveryID byte, message []byte, instructionIndex uint8) (solana.Instruction, error) {
	if len(signature) != SignatureSize {
		return solana.Instruction{}, errors.Wrapf(ErrInvalidSignature, "expected %d bytes, got %d", SignatureSize, len(signature))
	}
	if len(message) > 0xffff {
		return solana.Instruction{}, errors.Errorf("message too large: %d", len(message))
	}

	data := make([]byte, messageOffset+len(message))

	offset := 0

	data[offset] = 1 // num_signatures
	offset++

	binary.LittleEndian.PutUint16(data[offset:], signatureOffset) // signature_offset
	offset += 2

	data[offset] = instructionIndex // signature_instruction_index
	offset++

	binary.LittleEndian.PutUint16(data[offset:], ethAddressOffset) // eth_address_offset
	offset += 2

	data[offset] = instructionIndex // eth_address_instruction_index
	offset++

	binary.LittleEndian.PutUint16(data[offset:], messageOffset) // message_data_offset
	offset += 2

	binary.LittleEndian.PutUint16(data[offset:], uint16(len(message))) // message_data_size
	offset += 2

	data[offset] = instructionIndex // message_instruction_index
	offset++

	copy(data[offset:], ethAddress.Bytes())
	offset += EthAddressSize

	copy(data[offset:], signature)
	offset += SignatureSize

	data[offset] = recoveryID
	offset++

	copy(data[offset:], message)

	return solana.NewInstruction(
		ProgramKey,
		data,
	), nil
}

// Sign signs keccak256(message) with key and returns the verification
// instruction for it.
func Sign(key *ecdsa.PrivateKey, message []byte, instructionIndex uint8) (solana.Instruction, error) {
	sig, err := crypto.Sign(crypto.Keccak256(message), key)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "failed to sign message")
	}

	return FromRecoverableSignature(crypto.PubkeyToAddress(key.PublicKey), sig, message, instructionIndex)
}

// FromRecoverableSignature builds the instruction from a 65 byte [R || S || V]
// signature as produced by go-ethereum's crypto.Sign.
func FromRecoverableSignature(ethAddress common.Address, sig []byte, message []byte, instructionIndex uint8) (solana.Instruction, error) {
	if len(sig) != crypto.SignatureLength {
		return solana.Instruction{}, errors.Wrapf(ErrInvalidSignature, "expected %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	recoveryID := sig[crypto.RecoveryIDOffset]
	if recoveryID >= 27 {
		recoveryID -= 27
	}

	return Instruction(ethAddress, sig[:SignatureSize], recoveryID, message, instructionIndex)
}

type DecompiledInstruction struct {
	EthAddress       common.Address
	Signature        []byte
	RecoveryID       byte
	Message          []byte
	InstructionIndex uint8
}

// DecompileInstruction decodes a single signature secp256k1 instruction whose
// offsets point into its own data.
func DecompileInstruction(m solana.Message, index int) (*DecompiledInstruction, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}

	data := i.Data
	if len(data) < messageOffset || data[0] != 1 {
		return nil, ErrInvalidData
	}

	sigOffset := binary.LittleEndian.Uint16(data[1:])
	ethOffset := binary.LittleEndian.Uint16(data[4:])
	msgOffset := binary.LittleEndian.Uint16(data[7:])
	msgSize := binary.LittleEndian.Uint16(data[9:])
	if sigOffset != signatureOffset || ethOffset != ethAddressOffset || msgOffset != messageOffset {
		return nil, errors.Wrap(ErrInvalidData, "unexpected offsets")
	}
	if len(data) != messageOffset+int(msgSize) {
		return nil, errors.Wrap(ErrInvalidData, "invalid message size")
	}
	if data[3] != data[6] || data[3] != data[11] {
		return nil, errors.Wrap(ErrInvalidData, "offsets reference multiple instructions")
	}

	decompiled := &DecompiledInstruction{
		Signature:        make([]byte, SignatureSize),
		RecoveryID:       data[recoveryIDOffset],
		Message:          make([]byte, msgSize),
		InstructionIndex: data[3],
	}
	copy(decompiled.EthAddress[:], data[ethAddressOffset:signatureOffset])
	copy(decompiled.Signature, data[signatureOffset:recoveryIDOffset])
	copy(decompiled.Message, data[messageOffset:])

	return decompiled, nil
}

// RecoverAddress returns the eth address that produced the signature.
func (d *DecompiledInstruction) RecoverAddress() (common.Address, error) {
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, d.Signature)
	sig[crypto.RecoveryIDOffset] = d.RecoveryID

	pub, err := crypto.SigToPub(crypto.Keccak256(d.Message), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks the recovered signer matches the embedded eth address.
func (d *DecompiledInstruction) Verify() error {
	recovered, err := d.RecoverAddress()
	if err != nil {
		return err
	}

	if recovered != d.EthAddress {
		return errors.Wrapf(ErrInvalidSignature, "signed by %s, expected %s", recovered.Hex(), d.EthAddress.Hex())
	}

	return nil
}
