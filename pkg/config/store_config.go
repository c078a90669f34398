package config

import (
	"errors"
	"time"

	"github.com/nspcc-dev/chainjson/pkg/layout"
)

const (
	// DefaultCapacity is the default data account capacity.
	DefaultCapacity = layout.DefaultCapacity
	// DefaultAirdropLamports is the default amount requested from faucet (1 SOL).
	DefaultAirdropLamports = 1_000_000_000
	// DefaultFundingPolls is the default number of balance checks after airdrop.
	DefaultFundingPolls = 60
	// DefaultFundingPollInterval is the default interval between balance checks.
	DefaultFundingPollInterval = time.Second
)

// Store contains the store program and data account settings.
type Store struct {
	// ProgramPath is the path to the compiled program binary.
	ProgramPath string `yaml:"ProgramPath"`
	// Capacity is the data account size in bytes, layout.MaxCapacity at most.
	Capacity int `yaml:"Capacity"`
	// AccountLamports is the amount the data account is funded with on
	// creation, rent-exempt minimum is requested from the node if zero.
	AccountLamports uint64 `yaml:"AccountLamports"`
	// ChunkSize is the number of program bytes loaded per transaction.
	ChunkSize int     `yaml:"ChunkSize"`
	Funding   Funding `yaml:"Funding"`
}

// Funding configures payer funding via airdrops.
type Funding struct {
	Lamports     uint64        `yaml:"Lamports"`
	MaxPolls     int           `yaml:"MaxPolls"`
	PollInterval time.Duration `yaml:"PollInterval"`
}

// Layout returns data blob layout for the configured capacity.
func (s Store) Layout() (layout.Blob, error) {
	return layout.New(s.Capacity)
}

// Validate checks Store settings.
func (s Store) Validate() error {
	if _, err := s.Layout(); err != nil {
		return err
	}
	if s.ChunkSize < 0 {
		return errors.New("negative ChunkSize")
	}
	if s.Funding.MaxPolls <= 0 {
		return errors.New("Funding.MaxPolls must be positive")
	}
	if s.Funding.PollInterval <= 0 {
		return errors.New("Funding.PollInterval must be positive")
	}
	return nil
}
