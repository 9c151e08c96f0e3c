package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/zkinv/inventory"
)

// KeySigner signs with a single private key. A KeySigner without a key
// reports ErrSignerUnavailable.
type KeySigner struct {
	privKey *btcec.PrivateKey
}

// A compile time assertion to ensure KeySigner meets the Signer interface.
var _ Signer = (*KeySigner)(nil)

// NewKeySigner creates a signer for the given key, which may be nil.
func NewKeySigner(privKey *btcec.PrivateKey) *KeySigner {
	return &KeySigner{privKey: privKey}
}

// LoadKeySigner reads a hex encoded private key from path. A missing file
// results in a signer without a key.
func LoadKeySigner(path string) (*KeySigner, error) {
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warnf("No signing key found at %v", path)
		return NewKeySigner(nil), nil

	case err != nil:
		return nil, err
	}

	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil || len(keyBytes) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid signing key in %v", path)
	}

	privKey, _ := btcec.PrivKeyFromBytes(keyBytes)

	return NewKeySigner(privKey), nil
}

// CreateKeyFile generates a new private key and writes it to path, which
// must not exist yet.
func CreateKeyFile(path string) (*KeySigner, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	encoded := hex.EncodeToString(privKey.Serialize())
	if _, err := f.WriteString(encoded + "\n"); err != nil {
		return nil, err
	}

	return NewKeySigner(privKey), nil
}

// PubKey returns the public key of the signer.
func (k *KeySigner) PubKey() (*btcec.PublicKey, error) {
	if k.privKey == nil {
		return nil, inventory.ErrSignerUnavailable
	}

	return k.privKey.PubKey(), nil
}

// SignDigest produces a schnorr signature over the digest.
func (k *KeySigner) SignDigest(digest chainhash.Hash) (*schnorr.Signature,
	error) {

	if k.privKey == nil {
		return nil, inventory.ErrSignerUnavailable
	}

	return schnorr.Sign(k.privKey, digest[:])
}

// SignTransaction sets the signer of tx and signs it.
func SignTransaction(signer Signer, tx *Transaction) error {
	pubKey, err := signer.PubKey()
	if err != nil {
		return err
	}
	tx.Signer = pubKey

	digest, err := tx.Digest()
	if err != nil {
		return err
	}

	sig, err := signer.SignDigest(digest)
	if err != nil {
		return err
	}
	tx.Signature = sig.Serialize()

	return nil
}
