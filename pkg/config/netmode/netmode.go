package netmode

import (
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"
)

const (
	// LocalNet is a local test validator.
	LocalNet Cluster = "localnet"
	// DevNet is the public development cluster.
	DevNet Cluster = "devnet"
	// TestNet is the public testing cluster.
	TestNet Cluster = "testnet"
	// MainNet is the main official cluster. Airdrops are not available there.
	MainNet Cluster = "mainnet"
)

// Cluster describes the network the tool operates on.
type Cluster string

// String implements the stringer interface.
func (c Cluster) String() string {
	return string(c)
}

// Endpoint returns the default RPC endpoint of the cluster.
func (c Cluster) Endpoint() string {
	switch c {
	case LocalNet:
		return rpc.LocalNet.RPC
	case DevNet:
		return rpc.DevNet.RPC
	case TestNet:
		return rpc.TestNet.RPC
	case MainNet:
		return rpc.MainNetBeta.RPC
	default:
		return ""
	}
}

// Parse returns Cluster for the given name.
func Parse(s string) (Cluster, error) {
	switch c := Cluster(s); c {
	case LocalNet, DevNet, TestNet, MainNet:
		return c, nil
	}
	return "", fmt.Errorf("unknown cluster %q", s)
}
