/*
Package rpcclient creates Solana JSON-RPC clients used by the rest of the code.

Client itself comes from the solana-go SDK, this package only applies
connection options to it.
*/
package rpcclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

// Options defines options for the RPC client. All values are optional.
type Options struct {
	// RateLimit is the maximum number of requests per second sent to the
	// node, no limit is applied if it's not positive. Public clusters
	// throttle clients aggressively, so it's useful there.
	RateLimit float64
	// Burst is the rate limiter bucket size, 1 by default.
	Burst int
}

// VersionGetter is a part of the RPC client used to check that the node is
// alive.
type VersionGetter interface {
	GetVersion(ctx context.Context) (*rpc.GetVersionResult, error)
}

// New returns a new Client for the given endpoint. No requests are made,
// call Init to check node availability.
func New(endpoint string, opts Options) (*rpc.Client, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("bad endpoint: %w", err)
	}
	if opts.RateLimit <= 0 {
		return rpc.New(endpoint), nil
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return rpc.NewWithCustomRPCClient(rpc.NewWithLimiter(endpoint, rate.Limit(opts.RateLimit), opts.Burst)), nil
}

// Init makes a getVersion round-trip to ensure the node is reachable.
func Init(ctx context.Context, c VersionGetter) (*rpc.GetVersionResult, error) {
	v, err := c.GetVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get node version: %w", err)
	}
	return v, nil
}
