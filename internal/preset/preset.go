// Package preset holds the named event parameter sets an operator can deploy.
//
// The TUSCA 2022 event shipped with two deployment variants that disagree on
// the resale ceiling and the transfer fee. Neither is treated as
// authoritative: both are registered and the operator has to name one.
package preset

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

const (
	Tusca2022       = "tusca-2022"
	Tusca2022Capped = "tusca-2022-capped"
)

// tuscaBase carries the fields both TUSCA variants agree on.
var tuscaBase = domain.DeploymentParams{
	EventName:    "TUSCA 2022",
	EventSymbol:  "TUSCA",
	EventStart:   1668272400,
	TicketSupply: 15000,
	InitialPrice: decimal.NewFromInt(14000),
}

func builtins() map[string]domain.DeploymentParams {
	standard := tuscaBase
	standard.MaxPriceFactorPercent = 200
	standard.TransferFeePercent = 5

	capped := tuscaBase
	capped.MaxPriceFactorPercent = 150
	capped.TransferFeePercent = 10

	return map[string]domain.DeploymentParams{
		Tusca2022:       standard,
		Tusca2022Capped: capped,
	}
}

// Registry resolves preset names to parameter sets.
type Registry struct {
	presets map[string]domain.DeploymentParams
}

// NewRegistry returns a Registry containing the built-in presets plus the
// given custom ones. Custom presets may not reuse a built-in name.
func NewRegistry(custom map[string]domain.DeploymentParams) (*Registry, error) {
	presets := builtins()
	for name, p := range custom {
		key := Canonical(name)
		if key == "" {
			return nil, errors.New("preset: empty preset name")
		}
		if _, exists := presets[key]; exists {
			return nil, fmt.Errorf("preset: %q shadows an existing preset", name)
		}
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("preset: %q: %w", name, err)
		}
		presets[key] = p
	}
	return &Registry{presets: presets}, nil
}

// Lookup returns the parameters registered under name.
func (r *Registry) Lookup(name string) (domain.DeploymentParams, error) {
	key := Canonical(name)
	if key == "" {
		return domain.DeploymentParams{}, domain.ErrPresetRequired
	}
	p, ok := r.presets[key]
	if !ok {
		return domain.DeploymentParams{}, fmt.Errorf("preset %q (available: %s): %w",
			name, strings.Join(r.Names(), ", "), domain.ErrUnknownPreset)
	}
	return p, nil
}

// Names returns every registered preset name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.presets))
	for n := range r.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether name is one of the presets shipped with the tool.
func IsBuiltin(name string) bool {
	_, ok := builtins()[Canonical(name)]
	return ok
}

// Canonical returns the registry key for name. Lookups are case-insensitive,
// so this is the form runs are recorded and locked under.
func Canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validate(p domain.DeploymentParams) error {
	var errs []string
	if strings.TrimSpace(p.EventName) == "" {
		errs = append(errs, "event_name must not be empty")
	}
	if strings.TrimSpace(p.EventSymbol) == "" {
		errs = append(errs, "event_symbol must not be empty")
	}
	if p.EventStart <= 0 {
		errs = append(errs, "event_start must be a positive epoch timestamp")
	}
	if p.TicketSupply == 0 {
		errs = append(errs, "ticket_supply must be > 0")
	}
	if p.InitialPrice.IsNegative() {
		errs = append(errs, "initial_price must not be negative")
	}
	if p.MaxPriceFactorPercent < 100 {
		errs = append(errs, "max_price_factor_percent must be >= 100")
	}
	if p.TransferFeePercent > 100 {
		errs = append(errs, "transfer_fee_percent must be <= 100")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
