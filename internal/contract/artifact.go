// Package contract loads compiled contract artifacts and encodes constructor
// calls against their ABI.
package contract

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

// EventTicketSystem is the contract name the tool deploys by default.
const EventTicketSystem = "EventTicketSystem"

//go:embed abi/EventTicketSystem.abi.json
var eventTicketSystemABI []byte

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// artifactJSON covers the Truffle, Hardhat and Foundry artifact layouts. All
// three carry "abi"; the bytecode is a hex string in the first two and an
// object with an "object" field in Foundry output.
type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

type foundryBytecode struct {
	Object string `json:"object"`
}

// LoadArtifact reads and parses an artifact file from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contract: read artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes an artifact JSON document. When the document has no
// ABI the embedded EventTicketSystem ABI is used.
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("contract: parse artifact: %w", err)
	}

	abiJSON := []byte(raw.ABI)
	if len(bytes.TrimSpace(abiJSON)) == 0 || string(bytes.TrimSpace(abiJSON)) == "null" {
		abiJSON = eventTicketSystemABI
	}
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("contract: parse abi: %w", err)
	}

	code, err := decodeBytecode(raw.Bytecode)
	if err != nil {
		return nil, err
	}

	name := raw.ContractName
	if name == "" {
		name = EventTicketSystem
	}
	return &Artifact{Name: name, ABI: parsed, Bytecode: code}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("contract: artifact has no bytecode")
	}

	var hexCode string
	if err := json.Unmarshal(raw, &hexCode); err != nil {
		var fb foundryBytecode
		if err := json.Unmarshal(raw, &fb); err != nil {
			return nil, fmt.Errorf("contract: unrecognised bytecode field: %w", err)
		}
		hexCode = fb.Object
	}

	hexCode = strings.TrimSpace(hexCode)
	if !strings.HasPrefix(hexCode, "0x") {
		hexCode = "0x" + hexCode
	}
	if hexCode == "0x" {
		return nil, errors.New("contract: artifact bytecode is empty (abstract contract or interface?)")
	}
	if strings.Contains(hexCode, "__") {
		return nil, errors.New("contract: bytecode has unlinked library placeholders")
	}
	code, err := hexutil.Decode(hexCode)
	if err != nil {
		return nil, fmt.Errorf("contract: decode bytecode: %w", err)
	}
	return code, nil
}

// PackConstructor ABI-encodes args for the constructor. Arguments are first
// coerced to the Go types the ABI expects, so callers may pass *big.Int or
// plain integers regardless of the declared widths.
func (a *Artifact) PackConstructor(args ...any) ([]byte, error) {
	inputs := a.ABI.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("contract: %s constructor takes %d arguments, got %d: %w",
			a.Name, len(inputs), len(args), domain.ErrArgumentMismatch)
	}

	coerced := make([]any, len(args))
	for i, in := range inputs {
		v, err := coerce(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("contract: argument %d (%s %s): %w", i, in.Type.String(), in.Name, err)
		}
		coerced[i] = v
	}

	packed, err := a.ABI.Pack("", coerced...)
	if err != nil {
		return nil, fmt.Errorf("contract: pack constructor: %w", err)
	}
	return packed, nil
}

// DeployData returns the creation payload: bytecode followed by the encoded
// constructor arguments.
func (a *Artifact) DeployData(args ...any) ([]byte, error) {
	packed, err := a.PackConstructor(args...)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(a.Bytecode)+len(packed))
	out = append(out, a.Bytecode...)
	return append(out, packed...), nil
}

// ConstructorSignature renders the constructor inputs, e.g.
// "(string name, string symbol, uint256 eventStartDate, ...)".
func (a *Artifact) ConstructorSignature() string {
	parts := make([]string, len(a.ABI.Constructor.Inputs))
	for i, in := range a.ABI.Constructor.Inputs {
		parts[i] = strings.TrimSpace(in.Type.String() + " " + in.Name)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
