package crypto

import (
	"encoding/hex"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Well-known development key (anvil/hardhat account #0).
const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestEncryptDecryptKey(t *testing.T) {
	t.Parallel()

	blob, err := EncryptKey(devKey, "hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !strings.Contains(string(blob), devAddress) {
		t.Fatalf("expected key file to carry the address")
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if "0x"+got != devKey {
		t.Fatalf("expected %s, got 0x%s", devKey, got)
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if _, err := EncryptKey(devKey, ""); err == nil {
		t.Fatalf("expected empty password to fail")
	}
	if _, err := EncryptKey("0xnothex", "pw"); err == nil {
		t.Fatalf("expected invalid key to fail")
	}
}

func TestLoadKey(t *testing.T) {
	t.Parallel()

	t.Run("raw key", func(t *testing.T) {
		pk, err := LoadKey(KeyConfig{RawPrivateKey: devKey})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if addr := ethcrypto.PubkeyToAddress(pk.PublicKey); addr != common.HexToAddress(devAddress) {
			t.Fatalf("unexpected address %s", addr.Hex())
		}
	})

	t.Run("encrypted file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deployer.json")
		if err := WriteEncryptedKey(path, devKey, "pw"); err != nil {
			t.Fatalf("write: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
		}
		if err := WriteEncryptedKey(path, devKey, "pw"); err == nil {
			t.Fatalf("expected existing key file not to be overwritten")
		}

		pk, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hex.EncodeToString(ethcrypto.FromECDSA(pk)) != strings.TrimPrefix(devKey, "0x") {
			t.Fatalf("decrypted key mismatch")
		}
	})

	t.Run("no source", func(t *testing.T) {
		if _, err := LoadKey(KeyConfig{}); err == nil {
			t.Fatalf("expected error without a key source")
		}
	})
}

func TestSignerSignTx(t *testing.T) {
	t.Parallel()

	pk, err := LoadKey(KeyConfig{RawPrivateKey: devKey})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s, err := NewSigner(pk, big.NewInt(31337))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(31337),
		Nonce:     0,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       100_000,
		Data:      []byte{0x60, 0x80},
	})
	signed, err := s.SignTx(tx)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	from, err := s.Sender(signed)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if from != s.Address() {
		t.Fatalf("expected sender %s, got %s", s.Address().Hex(), from.Hex())
	}
	if s.ChainID().Int64() != 31337 {
		t.Fatalf("unexpected chain id %s", s.ChainID())
	}

	if _, err := NewSigner(pk, big.NewInt(0)); err == nil {
		t.Fatalf("expected invalid chain id to fail")
	}
	if _, err := NewSigner(nil, big.NewInt(1)); err == nil {
		t.Fatalf("expected nil key to fail")
	}
}
