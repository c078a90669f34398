package waiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

const (
	// DefaultPollInterval is the default interval between subsequent polls.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultPollRetryCount is a threshold for a number of subsequent failed
	// RPC requests. If polling fails DefaultPollRetryCount times in a row then
	// awaiting attempt is considered to be failed and an error is returned.
	DefaultPollRetryCount = 3
	// DefaultMaxAttempts is the default number of condition checks made by Poll.
	DefaultMaxAttempts = 30
)

var (
	// ErrTxNotAccepted is returned when transaction wasn't accepted to the chain
	// even after its blockhash expired.
	ErrTxNotAccepted = errors.New("transaction was not accepted to chain")
	// ErrTxFailed is returned when transaction was included into a block, but
	// its execution failed.
	ErrTxFailed = errors.New("transaction failed")
	// ErrContextDone is returned when Waiter context has been done in the middle
	// of awaiting process and no result was received yet.
	ErrContextDone = errors.New("waiter context done")
	// ErrTimeout is returned from Poll when the condition wasn't met after the
	// configured number of attempts.
	ErrTimeout = errors.New("condition not met in time")
)

// PollConfig is a configuration for bounded polling.
type PollConfig struct {
	// Interval is a time interval between subsequent polls. DefaultPollInterval
	// is used if not set.
	Interval time.Duration
	// MaxAttempts is the maximum number of condition checks made by Poll.
	// DefaultMaxAttempts is used if not set. PollingBased doesn't use it, it
	// waits until the transaction blockhash expires.
	MaxAttempts int
	// RetryCount is the number of subsequent failed RPC requests tolerated
	// before an error is returned.
	RetryCount int
}

// Condition is checked by Poll. It returns true when the awaited state is
// reached. An error is treated as a failed attempt.
type Condition func(ctx context.Context) (bool, error)

func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryCount <= 0 {
		c.RetryCount = DefaultPollRetryCount
	}
	return c
}

// Poll checks cond immediately and then every config.Interval until it
// returns true, MaxAttempts checks are made or ctx is done. So it never takes
// (much) longer than MaxAttempts*Interval. ErrTimeout is returned when
// attempts are exhausted.
func Poll(ctx context.Context, config PollConfig, cond Condition) error {
	config = config.withDefaults()

	var (
		failedAttempt int
		lastErr       error
	)
	timer := time.NewTicker(config.Interval)
	defer timer.Stop()
	for attempt := 1; ; attempt++ {
		ok, err := cond(ctx)
		if err != nil {
			failedAttempt++
			lastErr = err
			if failedAttempt > config.RetryCount {
				return fmt.Errorf("condition check failed %d times: %w", failedAttempt, err)
			}
		} else {
			failedAttempt = 0
			if ok {
				return nil
			}
		}
		if attempt >= config.MaxAttempts {
			if lastErr != nil && failedAttempt > 0 {
				return fmt.Errorf("%w after %d attempts (last error: %w)", ErrTimeout, attempt, lastErr)
			}
			return fmt.Errorf("%w after %d attempts", ErrTimeout, attempt)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrContextDone, ctx.Err())
		}
	}
}

type (
	// Waiter is an interface providing transaction awaiting functionality.
	Waiter interface {
		// Wait allows to wait until transaction will be accepted to the chain. It can be
		// used as a wrapper for SendTransaction and accepts transaction signature,
		// the last block height its blockhash is valid for and an error. It returns
		// transaction status or an error if transaction wasn't accepted to the chain
		// or has failed.
		Wait(ctx context.Context, sig solana.Signature, lastValid uint64, err error) (*rpc.SignatureStatusesResult, error)
	}
	// RPCPollingBased is an interface that enables transaction awaiting functionality
	// based on periodical signature status and block height polls.
	RPCPollingBased interface {
		GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
		GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	}
	// RPCEventBased is an interface that enables improved transaction awaiting
	// functionality based on websocket signature notifications.
	RPCEventBased interface {
		SignatureSubscribe(sig solana.Signature, commitment rpc.CommitmentType) (*ws.SignatureSubscription, error)
	}
)

// New creates Waiter instance. It returns EventBased if events is not nil and
// PollingBased otherwise.
func New(polling RPCPollingBased, events RPCEventBased, commitment rpc.CommitmentType, config PollConfig) Waiter {
	if events != nil {
		return NewEventBased(events, polling, commitment, config)
	}
	return NewPollingBased(polling, commitment, config)
}

// PollingBased is a polling-based Waiter.
type PollingBased struct {
	polling    RPCPollingBased
	commitment rpc.CommitmentType
	config     PollConfig
}

// NewPollingBased creates an instance of Waiter supporting poll-based
// transaction awaiting. Transactions are considered to be accepted when
// commitment level is reached.
func NewPollingBased(waiter RPCPollingBased, commitment rpc.CommitmentType, config PollConfig) *PollingBased {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &PollingBased{
		polling:    waiter,
		commitment: commitment,
		config:     config.withDefaults(),
	}
}

// errIsAlreadyProcessed means the transaction was sent before and can be
// awaited in a usual way.
func errIsAlreadyProcessed(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already been processed")
}

// Wait implements Waiter interface.
func (w *PollingBased) Wait(ctx context.Context, sig solana.Signature, lastValid uint64, err error) (*rpc.SignatureStatusesResult, error) {
	if err != nil && !errIsAlreadyProcessed(err) {
		return nil, err
	}
	var failedAttempt int
	timer := time.NewTicker(w.config.Interval)
	defer timer.Stop()
	for {
		res, err := w.polling.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			failedAttempt++
			if failedAttempt > w.config.RetryCount {
				return nil, fmt.Errorf("failed to retrieve signature status: %w", err)
			}
		} else {
			failedAttempt = 0
			if res != nil && len(res.Value) > 0 && res.Value[0] != nil {
				st := res.Value[0]
				if st.Err != nil {
					return st, fmt.Errorf("%w: %s: %v", ErrTxFailed, sig, st.Err)
				}
				if Reached(st.ConfirmationStatus, w.commitment) {
					return st, nil
				}
			} else if lastValid != 0 {
				height, err := w.polling.GetBlockHeight(ctx, w.commitment)
				if err == nil && height > lastValid {
					return nil, fmt.Errorf("%w: %s", ErrTxNotAccepted, sig)
				}
			}
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrContextDone, ctx.Err())
		}
	}
}

// Reached checks whether confirmation status satisfies the given commitment.
func Reached(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	return level(string(status)) >= level(string(commitment))
}

func level(s string) int {
	switch s {
	case string(rpc.CommitmentProcessed):
		return 1
	case string(rpc.CommitmentConfirmed):
		return 2
	case string(rpc.CommitmentFinalized):
		return 3
	}
	return 0
}

// EventBased is a websocket-based Waiter. It contains PollingBased under the
// hood and falls back to polling when subscription can't be made or the
// connection is lost. It also polls block height to detect blockhash expiry.
type EventBased struct {
	ws      RPCEventBased
	polling *PollingBased
}

// NewEventBased creates an instance of Waiter supporting websocket event-based
// transaction awaiting.
func NewEventBased(events RPCEventBased, polling RPCPollingBased, commitment rpc.CommitmentType, config PollConfig) *EventBased {
	return &EventBased{
		ws:      events,
		polling: NewPollingBased(polling, commitment, config),
	}
}

// Wait implements Waiter interface.
func (w *EventBased) Wait(ctx context.Context, sig solana.Signature, lastValid uint64, err error) (*rpc.SignatureStatusesResult, error) {
	if err != nil && !errIsAlreadyProcessed(err) {
		return nil, err
	}
	sub, err := w.ws.SignatureSubscribe(sig, w.polling.commitment)
	if err != nil {
		return w.polling.Wait(ctx, sig, lastValid, nil)
	}
	defer sub.Unsubscribe()

	var (
		resp  = sub.Response()
		timer = time.NewTicker(w.polling.config.Interval)
	)
	defer timer.Stop()
	for {
		select {
		case res := <-resp:
			st := &rpc.SignatureStatusesResult{
				Slot:               res.Context.Slot,
				ConfirmationStatus: rpc.ConfirmationStatusType(w.polling.commitment),
			}
			if res.Value.Err != nil {
				st.Err = res.Value.Err
				return st, fmt.Errorf("%w: %s: %v", ErrTxFailed, sig, res.Value.Err)
			}
			return st, nil
		case <-sub.Err():
			return w.polling.Wait(ctx, sig, lastValid, nil)
		case <-timer.C:
			if lastValid == 0 {
				continue
			}
			height, err := w.polling.polling.GetBlockHeight(ctx, w.polling.commitment)
			if err != nil || height <= lastValid {
				continue
			}
			// Notification may be missed, the final decision is made by status.
			return w.polling.Wait(ctx, sig, lastValid, nil)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrContextDone, ctx.Err())
		}
	}
}
