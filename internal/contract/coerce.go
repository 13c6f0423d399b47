package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

// coerce converts v to the Go type abi.Pack expects for t. Integer widths of
// 8, 16, 32 and 64 bits map to native Go integers; every other width maps to
// *big.Int.
func coerce(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T: %w", v, domain.ErrArgumentMismatch)
		}
		return s, nil

	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T: %w", v, domain.ErrArgumentMismatch)
		}
		return b, nil

	case abi.AddressTy:
		switch a := v.(type) {
		case common.Address:
			return a, nil
		case string:
			if !common.IsHexAddress(a) {
				return nil, fmt.Errorf("invalid address %q: %w", a, domain.ErrArgumentMismatch)
			}
			return common.HexToAddress(a), nil
		default:
			return nil, fmt.Errorf("expected address, got %T: %w", v, domain.ErrArgumentMismatch)
		}

	case abi.UintTy, abi.IntTy:
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		return narrow(t, n)

	default:
		return v, nil
	}
}

func toBig(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil integer: %w", domain.ErrArgumentMismatch)
		}
		return new(big.Int).Set(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	default:
		return nil, fmt.Errorf("expected integer, got %T: %w", v, domain.ErrArgumentMismatch)
	}
}

func narrow(t abi.Type, n *big.Int) (any, error) {
	size := t.Size
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > size {
			return nil, fmt.Errorf("%s does not fit uint%d: %w", n, size, domain.ErrArgumentMismatch)
		}
		switch size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		default:
			return n, nil
		}
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(size-1))
	minVal := new(big.Int).Neg(limit)
	if n.Cmp(minVal) < 0 || n.Cmp(limit) >= 0 {
		return nil, fmt.Errorf("%s does not fit int%d: %w", n, size, domain.ErrArgumentMismatch)
	}
	switch size {
	case 8:
		return int8(n.Int64()), nil
	case 16:
		return int16(n.Int64()), nil
	case 32:
		return int32(n.Int64()), nil
	case 64:
		return n.Int64(), nil
	default:
		return n, nil
	}
}
