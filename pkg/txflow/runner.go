package txflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TxRequest is one unsigned contract call.
type TxRequest struct {
	Step  Step
	Label string
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Sender signs and broadcasts a request, returning its hash.
type Sender interface {
	Send(ctx context.Context, req TxRequest) (common.Hash, error)
}

// RebalancePlan is the transactions of one rebalance. Approvals is empty
// when the router may already move the position and the redeposited tokens.
type RebalancePlan struct {
	Approvals []TxRequest
	Remove    TxRequest
	Add       TxRequest
}

func (p RebalancePlan) steps() []TxRequest {
	steps := make([]TxRequest, 0, len(p.Approvals)+2)
	for _, a := range p.Approvals {
		a.Step = StepApprove
		steps = append(steps, a)
	}
	r, ad := p.Remove, p.Add
	r.Step, ad.Step = StepRemove, StepAdd
	return append(steps, r, ad)
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Sender       Sender
	Receipts     ReceiptFetcher
	PollInterval time.Duration
	Logger       Logger
}

func (c *RunnerConfig) validate() error {
	if c.Sender == nil {
		return errors.New("sender is required")
	}
	if c.Receipts == nil {
		return errors.New("receipt fetcher is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Runner executes transactions one after another, each waiting for its
// receipt before the next is sent.
type Runner struct {
	sender   Sender
	receipts ReceiptFetcher
	interval time.Duration
	logger   Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Runner{
		sender:   cfg.Sender,
		receipts: cfg.Receipts,
		interval: cfg.PollInterval,
		logger:   cfg.Logger,
	}, nil
}

// Run sends reqs in order and stops at the first failure. Receipts of the
// steps that were mined are returned either way.
func (r *Runner) Run(ctx context.Context, reqs ...TxRequest) ([]*types.Receipt, error) {
	receipts := make([]*types.Receipt, 0, len(reqs))
	for _, req := range reqs {
		receipt, err := r.execute(ctx, req)
		if err != nil {
			return receipts, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// Rebalance drives m through plan. Approvals all run while m is Approving
// and are confirmed together after the last one is mined. If m is detached
// while a step is in flight the runner stops without touching m; the
// transaction already sent is left to the chain.
func (r *Runner) Rebalance(ctx context.Context, m *RebalanceMachine, plan RebalancePlan) ([]*types.Receipt, error) {
	if err := m.Start(len(plan.Approvals) > 0); err != nil {
		return nil, err
	}

	steps := plan.steps()
	var receipts []*types.Receipt
	for i, req := range steps {
		receipt, err := r.execute(ctx, req)
		if m.Detached() {
			return receipts, ErrDetached
		}
		if err != nil {
			if failErr := m.Fail(err); failErr != nil {
				r.logger.Warn("Could not mark rebalance failed", "error", failErr)
			}
			return receipts, err
		}
		receipts = append(receipts, receipt)
		if i+1 < len(steps) && steps[i+1].Step == req.Step {
			continue
		}
		if !m.Confirm(req.Step) {
			return receipts, fmt.Errorf("%w: confirm %s in %s", ErrInvalidTransition, req.Step, m.State())
		}
	}
	return receipts, nil
}

func (r *Runner) execute(ctx context.Context, req TxRequest) (*types.Receipt, error) {
	label := req.Label
	if label == "" {
		label = req.Step.String()
	}

	hash, err := r.sender.Send(ctx, req)
	if err != nil {
		r.logger.Warn("Transaction not sent", "step", label, "kind", Classify(err).String(), "error", err)
		return nil, fmt.Errorf("%s: send: %w", label, err)
	}
	r.logger.Info("Transaction sent", "step", label, "tx_hash", hash.Hex())

	receipt, err := WaitForReceipt(ctx, r.receipts, hash, r.interval)
	if err != nil {
		r.logger.Warn("Transaction failed", "step", label, "tx_hash", hash.Hex(), "error", err)
		return receipt, fmt.Errorf("%s: %w", label, err)
	}
	r.logger.Info("Transaction confirmed", "step", label, "tx_hash", hash.Hex(), "block_number", receipt.BlockNumber)
	return receipt, nil
}
