package chains

import (
	"encoding/base64"
	"fmt"

	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/cosmos/cosmos-sdk/types/bech32"
)

const ed25519PubKeyType = "/cosmos.crypto.ed25519.PubKey"

// accountFromValoper re-encodes an operator address with the account prefix.
func accountFromValoper(valoper, valoperPrefix, basePrefix string) (string, error) {
	hrp, bz, err := bech32.DecodeAndConvert(valoper)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", valoper, err)
	}
	if hrp != valoperPrefix {
		return "", fmt.Errorf("operator address %s has prefix %q, want %q", valoper, hrp, valoperPrefix)
	}
	return bech32.ConvertAndEncode(basePrefix, bz)
}

// consensusAddresses derives the bech32 and hex consensus addresses of a
// validator from its base64 ed25519 consensus key. The hex form matches the
// proposer_address of block headers.
func consensusAddresses(keyType, keyB64, consPrefix string) (string, string, error) {
	if keyType != ed25519PubKeyType {
		return "", "", fmt.Errorf("unsupported consensus key type %q", keyType)
	}
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return "", "", fmt.Errorf("decode consensus key: %w", err)
	}
	if len(raw) != ed25519.PubKeySize {
		return "", "", fmt.Errorf("consensus key has %d bytes, want %d", len(raw), ed25519.PubKeySize)
	}

	addr := ed25519.PubKey(raw).Address()
	bech, err := bech32.ConvertAndEncode(consPrefix, addr)
	if err != nil {
		return "", "", err
	}
	return bech, addr.String(), nil
}
