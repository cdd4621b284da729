package powauth

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidKey is returned by SignIn for a malformed or non-matching private
// key. Terminal; there is nothing to retry.
var ErrInvalidKey = errors.New("invalid private key")

// PrivateKeyHexLen is the exact length of an account credential: a 32-byte
// secp256k1 scalar, hex-encoded, no 0x prefix.
const PrivateKeyHexLen = 64

const keyIDLen = 10

// Keypair is a freshly generated anonymous identity. The private key is shown
// to the user exactly once and is unrecoverable afterwards.
type Keypair struct {
	PrivateKeyHex string
	PublicKeyHex  string
	KeyID         string
	Nonce         uint64
	Hashes        uint64
}

// DeriveKeyID shortens a public key into the identifier used to tag bets and
// slips: the first 10 hex characters of Keccak256(pubkey).
func DeriveKeyID(pub []byte) string {
	sum := crypto.Keccak256(pub)
	return hex.EncodeToString(sum)[:keyIDLen]
}

// ParsePrivateKey decodes a raw 64-hex-character private key and re-derives
// its public half and key id. It does not check registration.
func ParsePrivateKey(privateKeyInput string) (*Keypair, error) {
	raw := strings.TrimSpace(privateKeyInput)
	if len(raw) != PrivateKeyHexLen {
		return nil, ErrInvalidKey
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, ErrInvalidKey
	}
	pub := crypto.FromECDSAPub(&key.PublicKey)
	return &Keypair{
		PrivateKeyHex: raw,
		PublicKeyHex:  hex.EncodeToString(pub),
		KeyID:         DeriveKeyID(pub),
	}, nil
}

// SignIn validates a supplied private key against a registered public key and
// returns the derived key id. The key must be exactly 64 hex characters and
// must deterministically re-derive the registered public key. No proof of work
// is required to sign in, only to register.
func SignIn(privateKeyInput, registeredPubHex string) (string, error) {
	kp, err := ParsePrivateKey(privateKeyInput)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(kp.PublicKeyHex, strings.TrimSpace(registeredPubHex)) {
		return "", ErrInvalidKey
	}
	return kp.KeyID, nil
}
