package ledger

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightningnetwork/lnd/tlv"
)

// Call is a single verifier invocation inside a transaction. It carries a
// proof for one state transition of one inventory.
type Call struct {
	// InventoryID is the inventory the call applies to.
	InventoryID inventory.ID

	// Op is the kind of transition, selecting the verifying key.
	Op inventory.OpType

	// ItemID is the item moved.
	ItemID inventory.ItemID

	// Amount is the number of units moved.
	Amount uint64

	// Nonce must equal the inventory's nonce at the time the call is
	// applied.
	Nonce uint64

	// RegistryRoot must equal the current registry root.
	RegistryRoot inventory.FieldElement

	// NewCommitment replaces the inventory's commitment on success.
	NewCommitment inventory.Commitment

	// Proof is the serialized proof.
	Proof []byte

	// PublicInputs are the public inputs the proof is checked against.
	PublicInputs []inventory.FieldElement

	// TransferGroup pairs the two legs of a transfer. Zero means the
	// call is not part of a transfer.
	TransferGroup uint32
}

// String returns a short description of the call.
func (c *Call) String() string {
	return fmt.Sprintf("%v(inventory=%v, item=%d, amount=%d, nonce=%d)",
		c.Op, c.InventoryID, c.ItemID, c.Amount, c.Nonce)
}

// Transaction is an ordered list of calls applied atomically: either every
// call lands in order or none does.
type Transaction struct {
	// Signer is the key authorizing the transaction. It must own every
	// inventory touched.
	Signer *btcec.PublicKey

	// Calls are applied strictly in this order.
	Calls []Call

	// Signature is the schnorr signature of Signer over Digest.
	Signature []byte
}

// Inventories returns the distinct inventories touched by the transaction in
// order of first appearance.
func (t *Transaction) Inventories() []inventory.ID {
	seen := make(map[inventory.ID]struct{})

	var ids []inventory.ID
	for _, c := range t.Calls {
		if _, ok := seen[c.InventoryID]; ok {
			continue
		}
		seen[c.InventoryID] = struct{}{}
		ids = append(ids, c.InventoryID)
	}

	return ids
}

const (
	txSignerType    tlv.Type = 0
	txCallsType     tlv.Type = 2
	txSignatureType tlv.Type = 4

	callInventoryIDType   tlv.Type = 0
	callOpType            tlv.Type = 2
	callItemIDType        tlv.Type = 4
	callAmountType        tlv.Type = 6
	callNonceType         tlv.Type = 8
	callRegistryRootType  tlv.Type = 10
	callCommitmentType    tlv.Type = 12
	callProofType         tlv.Type = 14
	callPublicInputsType  tlv.Type = 16
	callTransferGroupType tlv.Type = 18

	// maxCalls bounds the number of calls we'll decode.
	maxCalls = 1024
)

// records returns the TLV records of a call.
func (c *Call) records() []tlv.Record {
	inputsSize := func() uint64 {
		n := uint64(len(c.PublicInputs))
		return tlv.VarIntSize(n) + n*inventory.FieldSize
	}

	return []tlv.Record{
		tlv.MakePrimitiveRecord(
			callInventoryIDType, (*[32]byte)(&c.InventoryID),
		),
		tlv.MakePrimitiveRecord(callOpType, (*uint8)(&c.Op)),
		tlv.MakePrimitiveRecord(callItemIDType, (*uint32)(&c.ItemID)),
		tlv.MakePrimitiveRecord(callAmountType, &c.Amount),
		tlv.MakePrimitiveRecord(callNonceType, &c.Nonce),
		tlv.MakePrimitiveRecord(
			callRegistryRootType, (*[32]byte)(&c.RegistryRoot),
		),
		tlv.MakePrimitiveRecord(
			callCommitmentType, (*[32]byte)(&c.NewCommitment),
		),
		tlv.MakePrimitiveRecord(callProofType, &c.Proof),
		tlv.MakeDynamicRecord(
			callPublicInputsType, &c.PublicInputs, inputsSize,
			inventory.FieldElementsEncoder,
			inventory.FieldElementsDecoder,
		),
		tlv.MakePrimitiveRecord(
			callTransferGroupType, &c.TransferGroup,
		),
	}
}

// Encode serializes the call as a TLV stream.
func (c *Call) Encode(w io.Writer) error {
	stream, err := tlv.NewStream(c.records()...)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode reads a call from a TLV stream.
func (c *Call) Decode(r io.Reader) error {
	stream, err := tlv.NewStream(c.records()...)
	if err != nil {
		return err
	}

	return stream.Decode(r)
}

// CallsEncoder encodes a list of calls, each as a length prefixed TLV stream.
func CallsEncoder(w io.Writer, val any, buf *[8]byte) error {
	if t, ok := val.(*[]Call); ok {
		if err := tlv.WriteVarInt(w, uint64(len(*t)), buf); err != nil {
			return err
		}

		for i := range *t {
			var b bytes.Buffer
			if err := (*t)[i].Encode(&b); err != nil {
				return err
			}

			callBytes := b.Bytes()
			err := tlv.WriteVarInt(w, uint64(len(callBytes)), buf)
			if err != nil {
				return err
			}
			if err := tlv.EVarBytes(w, &callBytes, buf); err != nil {
				return err
			}
		}

		return nil
	}

	return tlv.NewTypeForEncodingErr(val, "[]Call")
}

// CallsDecoder decodes a list of calls.
func CallsDecoder(r io.Reader, val any, buf *[8]byte, l uint64) error {
	if t, ok := val.(*[]Call); ok {
		numCalls, err := tlv.ReadVarInt(r, buf)
		if err != nil {
			return err
		}
		if numCalls > maxCalls {
			return fmt.Errorf("too many calls: %d", numCalls)
		}

		calls := make([]Call, 0, numCalls)
		for i := uint64(0); i < numCalls; i++ {
			callLen, err := tlv.ReadVarInt(r, buf)
			if err != nil {
				return err
			}
			if callLen > l {
				return tlv.ErrRecordTooLarge
			}

			var callBytes []byte
			err = tlv.DVarBytes(r, &callBytes, buf, callLen)
			if err != nil {
				return err
			}

			var c Call
			if err := c.Decode(bytes.NewReader(callBytes)); err != nil {
				return err
			}
			calls = append(calls, c)
		}
		*t = calls

		return nil
	}

	return tlv.NewTypeForDecodingErr(val, "[]Call", l, l)
}

// unsignedRecords returns the records covered by the signature.
func (t *Transaction) unsignedRecords() []tlv.Record {
	return []tlv.Record{
		tlv.MakePrimitiveRecord(txSignerType, &t.Signer),
		tlv.MakeDynamicRecord(
			txCallsType, &t.Calls, func() uint64 {
				var b bytes.Buffer
				var buf [8]byte
				_ = CallsEncoder(&b, &t.Calls, &buf)
				return uint64(b.Len())
			}, CallsEncoder, CallsDecoder,
		),
	}
}

// Encode serializes the signed transaction.
func (t *Transaction) Encode(w io.Writer) error {
	records := append(
		t.unsignedRecords(),
		tlv.MakePrimitiveRecord(txSignatureType, &t.Signature),
	)

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode reads a signed transaction.
func (t *Transaction) Decode(r io.Reader) error {
	records := append(
		t.unsignedRecords(),
		tlv.MakePrimitiveRecord(txSignatureType, &t.Signature),
	)

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	return stream.Decode(r)
}

// Digest is the hash the signer commits to: the double sha256 of the
// transaction's TLV encoding without the signature.
func (t *Transaction) Digest() (chainhash.Hash, error) {
	if t.Signer == nil {
		return chainhash.Hash{}, fmt.Errorf("transaction has no signer")
	}

	stream, err := tlv.NewStream(t.unsignedRecords()...)
	if err != nil {
		return chainhash.Hash{}, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return chainhash.Hash{}, err
	}

	return chainhash.DoubleHashH(b.Bytes()), nil
}
