package inventory

import (
	"bytes"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

const (
	// PublicInputSignalHash is the index of the signal hash within a
	// state transition's public inputs.
	PublicInputSignalHash = 0

	// PublicInputNonce is the index of the nonce public input.
	PublicInputNonce = 1

	// PublicInputInventoryID is the index of the inventory id public
	// input.
	PublicInputInventoryID = 2

	// PublicInputRegistryRoot is the index of the registry root public
	// input.
	PublicInputRegistryRoot = 3

	// NumTransitionInputs is the number of public inputs of a state
	// transition proof.
	NumTransitionInputs = 4
)

// ProofArtifact is the immutable output of proving a single transition.
type ProofArtifact struct {
	// Proof is the serialized proof.
	Proof []byte

	// PublicInputs are the public inputs the proof verifies against:
	// signal hash, nonce, inventory id and registry root.
	PublicInputs []FieldElement

	// Nonce is the nonce the proof was generated for.
	Nonce uint64

	// InventoryID is the inventory the proof is bound to.
	InventoryID ID

	// RegistryRoot is the registry root the proof is bound to.
	RegistryRoot FieldElement

	// NewCommitment is the commitment claimed for the post state.
	NewCommitment Commitment

	// NewVolume is the used volume of the post state.
	NewVolume uint64
}

// SignalHash returns the signal hash public input, if present.
func (a *ProofArtifact) SignalHash() (FieldElement, bool) {
	if len(a.PublicInputs) <= PublicInputSignalHash {
		return FieldElement{}, false
	}

	return a.PublicInputs[PublicInputSignalHash], true
}

// EncodeRecords returns the TLV records of the artifact.
func (a *ProofArtifact) EncodeRecords() []tlv.Record {
	return []tlv.Record{
		newArtifactProofRecord(&a.Proof),
		newArtifactPublicInputsRecord(&a.PublicInputs),
		newArtifactNonceRecord(&a.Nonce),
		newArtifactInventoryIDRecord(&a.InventoryID),
		newArtifactRegistryRootRecord(&a.RegistryRoot),
		newArtifactCommitmentRecord(&a.NewCommitment),
		newArtifactVolumeRecord(&a.NewVolume),
	}
}

// DecodeRecords returns the TLV records used to decode an artifact.
func (a *ProofArtifact) DecodeRecords() []tlv.Record {
	return a.EncodeRecords()
}

// Encode serializes the artifact as a TLV stream.
func (a *ProofArtifact) Encode(w io.Writer) error {
	stream, err := tlv.NewStream(a.EncodeRecords()...)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode reads an artifact from a TLV stream.
func (a *ProofArtifact) Decode(r io.Reader) error {
	stream, err := tlv.NewStream(a.DecodeRecords()...)
	if err != nil {
		return err
	}

	return stream.Decode(r)
}

// DecodeArtifact is a helper that decodes a serialized artifact.
func DecodeArtifact(b []byte) (*ProofArtifact, error) {
	var a ProofArtifact
	if err := a.Decode(bytes.NewReader(b)); err != nil {
		return nil, err
	}

	return &a, nil
}
