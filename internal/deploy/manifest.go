package deploy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
	"github.com/alanyoungcy/ticketdeploy/internal/units"
)

// Manifest is the JSON document describing one deployment, shared by the
// archive and the event bus.
type Manifest struct {
	ID              string         `json:"id"`
	Preset          string         `json:"preset"`
	ChainID         int64          `json:"chain_id"`
	Deployer        string         `json:"deployer,omitempty"`
	ContractAddress string         `json:"contract_address,omitempty"`
	TxHash          string         `json:"tx_hash,omitempty"`
	BlockNumber     uint64         `json:"block_number,omitempty"`
	GasUsed         uint64         `json:"gas_used,omitempty"`
	Status          string         `json:"status"`
	Error           string         `json:"error,omitempty"`
	Params          ManifestParams `json:"params"`
	CreatedAt       time.Time      `json:"created_at"`
	ConfirmedAt     *time.Time     `json:"confirmed_at,omitempty"`
}

// ManifestParams mirrors domain.DeploymentParams with the price given both
// in ETH and in wei.
type ManifestParams struct {
	EventName             string `json:"event_name"`
	EventSymbol           string `json:"event_symbol"`
	EventStart            int64  `json:"event_start"`
	TicketSupply          uint64 `json:"ticket_supply"`
	InitialPrice          string `json:"initial_price"`
	InitialPriceWei       string `json:"initial_price_wei,omitempty"`
	MaxPriceFactorPercent uint64 `json:"max_price_factor_percent"`
	TransferFeePercent    uint64 `json:"transfer_fee_percent"`
}

// NewManifest converts a deployment record into its manifest form.
func NewManifest(d domain.Deployment) Manifest {
	p := d.Params
	mp := ManifestParams{
		EventName:             p.EventName,
		EventSymbol:           p.EventSymbol,
		EventStart:            p.EventStart,
		TicketSupply:          p.TicketSupply,
		InitialPrice:          p.InitialPrice.String(),
		MaxPriceFactorPercent: p.MaxPriceFactorPercent,
		TransferFeePercent:    p.TransferFeePercent,
	}
	if wei, err := p.InitialPriceBaseUnits(units.EtherDecimals); err == nil {
		mp.InitialPriceWei = wei.String()
	}
	return Manifest{
		ID:              d.ID,
		Preset:          d.Preset,
		ChainID:         d.ChainID,
		Deployer:        d.DeployerAddress,
		ContractAddress: d.ContractAddress,
		TxHash:          d.TxHash,
		BlockNumber:     d.BlockNumber,
		GasUsed:         d.GasUsed,
		Status:          string(d.Status),
		Error:           d.Error,
		Params:          mp,
		CreatedAt:       d.CreatedAt,
		ConfirmedAt:     d.ConfirmedAt,
	}
}

// ParseManifest decodes a manifest payload, as written to the event stream,
// back into a deployment record.
func ParseManifest(payload []byte) (domain.Deployment, error) {
	var m Manifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return domain.Deployment{}, fmt.Errorf("deploy: decode manifest: %w", err)
	}
	price, err := decimal.NewFromString(m.Params.InitialPrice)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("deploy: manifest %s: initial_price: %w", m.ID, err)
	}
	return domain.Deployment{
		ID:              m.ID,
		Preset:          m.Preset,
		ChainID:         m.ChainID,
		DeployerAddress: m.Deployer,
		ContractAddress: m.ContractAddress,
		TxHash:          m.TxHash,
		BlockNumber:     m.BlockNumber,
		GasUsed:         m.GasUsed,
		Status:          domain.DeploymentStatus(m.Status),
		Error:           m.Error,
		Params: domain.DeploymentParams{
			EventName:             m.Params.EventName,
			EventSymbol:           m.Params.EventSymbol,
			EventStart:            m.Params.EventStart,
			TicketSupply:          m.Params.TicketSupply,
			InitialPrice:          price,
			MaxPriceFactorPercent: m.Params.MaxPriceFactorPercent,
			TransferFeePercent:    m.Params.TransferFeePercent,
		},
		CreatedAt:   m.CreatedAt,
		ConfirmedAt: m.ConfirmedAt,
	}, nil
}
