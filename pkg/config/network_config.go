package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/nspcc-dev/chainjson/pkg/config/netmode"
)

// DefaultCommitment is the commitment level used when it's not configured.
const DefaultCommitment = rpc.CommitmentConfirmed

// Network contains RPC node connection settings.
type Network struct {
	// Cluster is used to pick the default endpoint.
	Cluster netmode.Cluster `yaml:"Cluster"`
	// Endpoint is the RPC node URL, it overrides the cluster default.
	Endpoint string `yaml:"Endpoint"`
	// WSEndpoint is the websocket RPC URL used for transaction awaiting.
	// Transactions are awaited via polling if it's empty.
	WSEndpoint string `yaml:"WSEndpoint"`
	// Commitment is the commitment level required for reads and
	// transaction acceptance.
	Commitment rpc.CommitmentType `yaml:"Commitment"`
	// RateLimit is the maximum number of RPC requests per second (no
	// limit if zero).
	RateLimit float64 `yaml:"RateLimit"`
	RateBurst int     `yaml:"RateBurst"`
	// SkipPreflight disables transaction simulation before sending.
	SkipPreflight bool `yaml:"SkipPreflight"`
	// PollInterval is the interval between transaction status requests.
	PollInterval time.Duration `yaml:"PollInterval"`
}

// Validate checks Network settings and sets the default endpoint if needed.
func (n *Network) Validate() error {
	if n.Cluster != "" {
		if _, err := netmode.Parse(string(n.Cluster)); err != nil {
			return err
		}
	}
	if n.Endpoint == "" {
		n.Endpoint = n.Cluster.Endpoint()
	}
	if n.Endpoint == "" {
		return errors.New("no endpoint and no cluster specified")
	}
	if n.WSEndpoint != "" {
		u, err := url.Parse(n.WSEndpoint)
		if err != nil {
			return fmt.Errorf("bad WSEndpoint: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("bad WSEndpoint scheme %q", u.Scheme)
		}
	}
	switch n.Commitment {
	case "":
		n.Commitment = DefaultCommitment
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("unsupported commitment %q", n.Commitment)
	}
	if n.RateLimit < 0 {
		return fmt.Errorf("negative RateLimit: %v", n.RateLimit)
	}
	return nil
}
