package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ticketdeploy/internal/units"
)

// DeploymentParams is the full constructor parameter set for one ticketed
// event. Values are treated as immutable once built.
type DeploymentParams struct {
	EventName    string
	EventSymbol  string
	EventStart   int64  // epoch seconds
	TicketSupply uint64 // maximum number of tickets that can be minted
	// InitialPrice is expressed in whole units of the native currency
	// (ETH), not wei.
	InitialPrice          decimal.Decimal
	MaxPriceFactorPercent uint64 // resale ceiling relative to InitialPrice
	TransferFeePercent    uint64 // fee charged on attendee-to-attendee transfers
}

// InitialPriceBaseUnits converts InitialPrice into the smallest currency unit
// for a currency with the given number of decimals.
func (p DeploymentParams) InitialPriceBaseUnits(decimals int32) (*big.Int, error) {
	wei, err := units.ToBaseUnits(p.InitialPrice, decimals)
	if err != nil {
		return nil, fmt.Errorf("domain: initial price: %w", err)
	}
	return wei, nil
}

// ConstructorArgs returns the arguments in the exact order expected by the
// EventTicketSystem constructor:
//
//	(name, symbol, startTimestamp, maxSupply, initialPriceInSmallestUnit,
//	 maxPriceFactorPercent, transferFeePercent)
//
// Numeric arguments are returned as *big.Int; the contract package narrows
// them to the ABI's declared widths.
func (p DeploymentParams) ConstructorArgs(decimals int32) ([]any, error) {
	price, err := p.InitialPriceBaseUnits(decimals)
	if err != nil {
		return nil, err
	}
	return []any{
		p.EventName,
		p.EventSymbol,
		big.NewInt(p.EventStart),
		new(big.Int).SetUint64(p.TicketSupply),
		price,
		new(big.Int).SetUint64(p.MaxPriceFactorPercent),
		new(big.Int).SetUint64(p.TransferFeePercent),
	}, nil
}

// Equal reports whether two parameter sets are identical. Decimal values are
// compared numerically.
func (p DeploymentParams) Equal(o DeploymentParams) bool {
	return p.EventName == o.EventName &&
		p.EventSymbol == o.EventSymbol &&
		p.EventStart == o.EventStart &&
		p.TicketSupply == o.TicketSupply &&
		p.InitialPrice.Equal(o.InitialPrice) &&
		p.MaxPriceFactorPercent == o.MaxPriceFactorPercent &&
		p.TransferFeePercent == o.TransferFeePercent
}
