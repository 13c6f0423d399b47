package contract

import (
	"bytes"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

const truffleArtifact = `{
  "contractName": "EventTicketSystem",
  "bytecode": "0x6080604052348015600f57600080fd5b50"
}`

const foundryArtifact = `{
  "abi": [
    {"type": "constructor", "inputs": [
      {"name": "name", "type": "string"},
      {"name": "symbol", "type": "string"},
      {"name": "start", "type": "uint64"},
      {"name": "supply", "type": "uint32"},
      {"name": "price", "type": "uint256"},
      {"name": "factor", "type": "uint16"},
      {"name": "fee", "type": "uint8"}
    ]}
  ],
  "bytecode": {"object": "0x60806040"}
}`

func tuscaArgs() []any {
	price, _ := new(big.Int).SetString("14000000000000000000000", 10)
	return []any{
		"TUSCA 2022",
		"TUSCA",
		big.NewInt(1668272400),
		big.NewInt(15000),
		price,
		big.NewInt(200),
		big.NewInt(5),
	}
}

func TestParseArtifactTruffleUsesEmbeddedABI(t *testing.T) {
	t.Parallel()

	a, err := ParseArtifact([]byte(truffleArtifact))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a.Name != EventTicketSystem {
		t.Fatalf("expected name %s, got %s", EventTicketSystem, a.Name)
	}
	if len(a.ABI.Constructor.Inputs) != 7 {
		t.Fatalf("expected 7 constructor inputs, got %d", len(a.ABI.Constructor.Inputs))
	}
	if len(a.Bytecode) != 17 {
		t.Fatalf("expected 17 bytes of bytecode, got %d", len(a.Bytecode))
	}
}

func TestPackConstructorRoundTrip(t *testing.T) {
	t.Parallel()

	a, err := ParseArtifact([]byte(truffleArtifact))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	packed, err := a.PackConstructor(tuscaArgs()...)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	values, err := a.ABI.Constructor.Inputs.Unpack(packed)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if values[0].(string) != "TUSCA 2022" || values[1].(string) != "TUSCA" {
		t.Fatalf("unexpected strings: %v %v", values[0], values[1])
	}
	want := tuscaArgs()
	for i := 2; i < len(want); i++ {
		got := values[i].(*big.Int)
		if got.Cmp(want[i].(*big.Int)) != 0 {
			t.Fatalf("argument %d: expected %s, got %s", i, want[i], got)
		}
	}

	data, err := a.DeployData(tuscaArgs()...)
	if err != nil {
		t.Fatalf("deploy data: %v", err)
	}
	if !bytes.HasPrefix(data, a.Bytecode) || !bytes.HasSuffix(data, packed) {
		t.Fatalf("deploy data must be bytecode followed by packed args")
	}
}

func TestPackConstructorNarrowsToDeclaredWidths(t *testing.T) {
	t.Parallel()

	a, err := ParseArtifact([]byte(foundryArtifact))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := a.PackConstructor(tuscaArgs()...); err != nil {
		t.Fatalf("expected narrow widths to accept TUSCA args, got %v", err)
	}

	args := tuscaArgs()
	args[6] = big.NewInt(300) // does not fit uint8
	if _, err := a.PackConstructor(args...); !errors.Is(err, domain.ErrArgumentMismatch) {
		t.Fatalf("expected ErrArgumentMismatch, got %v", err)
	}
}

func TestPackConstructorRejectsBadArguments(t *testing.T) {
	t.Parallel()

	a, _ := ParseArtifact([]byte(truffleArtifact))

	if _, err := a.PackConstructor("only one"); !errors.Is(err, domain.ErrArgumentMismatch) {
		t.Fatalf("expected arity mismatch, got %v", err)
	}

	args := tuscaArgs()
	args[0] = 42
	if _, err := a.PackConstructor(args...); !errors.Is(err, domain.ErrArgumentMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}

	args = tuscaArgs()
	args[3] = big.NewInt(-1)
	if _, err := a.PackConstructor(args...); !errors.Is(err, domain.ErrArgumentMismatch) {
		t.Fatalf("expected negative uint rejection, got %v", err)
	}
}

func TestParseArtifactErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "{"},
		{name: "missing bytecode", doc: `{"contractName": "X"}`},
		{name: "empty bytecode", doc: `{"bytecode": "0x"}`},
		{name: "unlinked library", doc: `{"bytecode": "0x6080__$abcdef$__"}`},
		{name: "bad hex", doc: `{"bytecode": "0xzz"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArtifact([]byte(tt.doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadArtifactFromDisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "EventTicketSystem.json")
	if err := os.WriteFile(path, []byte(truffleArtifact), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	a, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sig := a.ConstructorSignature(); sig == "()" {
		t.Fatalf("expected non-empty constructor signature")
	}
	if _, err := LoadArtifact(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
