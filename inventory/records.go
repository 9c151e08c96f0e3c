package inventory

import (
	"fmt"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

const (
	ArtifactProofType        tlv.Type = 0
	ArtifactPublicInputsType tlv.Type = 2
	ArtifactNonceType        tlv.Type = 4
	ArtifactInventoryIDType  tlv.Type = 6
	ArtifactRegistryRootType tlv.Type = 8
	ArtifactCommitmentType   tlv.Type = 10
	ArtifactVolumeType       tlv.Type = 12

	// maxPublicInputs bounds the number of public inputs we'll decode.
	maxPublicInputs = 64
)

func newArtifactProofRecord(proof *[]byte) tlv.Record {
	return tlv.MakePrimitiveRecord(ArtifactProofType, proof)
}

func newArtifactPublicInputsRecord(inputs *[]FieldElement) tlv.Record {
	sizeFunc := func() uint64 {
		n := uint64(len(*inputs))
		return tlv.VarIntSize(n) + n*FieldSize
	}
	return tlv.MakeDynamicRecord(
		ArtifactPublicInputsType, inputs, sizeFunc,
		FieldElementsEncoder, FieldElementsDecoder,
	)
}

func newArtifactNonceRecord(nonce *uint64) tlv.Record {
	return tlv.MakePrimitiveRecord(ArtifactNonceType, nonce)
}

func newArtifactInventoryIDRecord(id *ID) tlv.Record {
	return tlv.MakePrimitiveRecord(
		ArtifactInventoryIDType, (*[32]byte)(id),
	)
}

func newArtifactRegistryRootRecord(root *FieldElement) tlv.Record {
	return tlv.MakePrimitiveRecord(
		ArtifactRegistryRootType, (*[32]byte)(root),
	)
}

func newArtifactCommitmentRecord(c *Commitment) tlv.Record {
	return tlv.MakePrimitiveRecord(
		ArtifactCommitmentType, (*[32]byte)(c),
	)
}

func newArtifactVolumeRecord(vol *uint64) tlv.Record {
	return tlv.MakePrimitiveRecord(ArtifactVolumeType, vol)
}

// FieldElementsEncoder encodes a length prefixed list of field elements.
func FieldElementsEncoder(w io.Writer, val any, buf *[8]byte) error {
	if t, ok := val.(*[]FieldElement); ok {
		err := tlv.WriteVarInt(w, uint64(len(*t)), buf)
		if err != nil {
			return err
		}

		for _, elem := range *t {
			if _, err := w.Write(elem[:]); err != nil {
				return err
			}
		}

		return nil
	}

	return tlv.NewTypeForEncodingErr(val, "[]FieldElement")
}

// FieldElementsDecoder decodes a length prefixed list of field elements.
func FieldElementsDecoder(r io.Reader, val any, buf *[8]byte, l uint64) error {
	if t, ok := val.(*[]FieldElement); ok {
		num, err := tlv.ReadVarInt(r, buf)
		if err != nil {
			return err
		}
		if num > maxPublicInputs {
			return fmt.Errorf("too many field elements: %d", num)
		}
		if tlv.VarIntSize(num)+num*FieldSize != l {
			return fmt.Errorf("field element list length mismatch")
		}

		elems := make([]FieldElement, num)
		for i := range elems {
			if _, err := io.ReadFull(r, elems[i][:]); err != nil {
				return err
			}
		}
		*t = elems

		return nil
	}

	return tlv.NewTypeForDecodingErr(val, "[]FieldElement", l, l)
}
