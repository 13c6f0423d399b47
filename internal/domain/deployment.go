package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DeploymentStatus is the lifecycle state of a recorded deployment run.
type DeploymentStatus string

const (
	DeploymentPending   DeploymentStatus = "pending"
	DeploymentConfirmed DeploymentStatus = "confirmed"
	DeploymentFailed    DeploymentStatus = "failed"
	DeploymentPlanned   DeploymentStatus = "planned"
)

// Deployment is the record of a single deployment run, successful or not.
type Deployment struct {
	ID              string
	Preset          string
	ChainID         int64
	DeployerAddress string
	Params          DeploymentParams
	ContractAddress string
	TxHash          string
	BlockNumber     uint64
	GasUsed         uint64
	Status          DeploymentStatus
	Error           string
	CreatedAt       time.Time
	ConfirmedAt     *time.Time
}

// DeployedInstance is what the chain reports back for a mined contract
// creation.
type DeployedInstance struct {
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}
