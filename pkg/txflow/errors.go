package txflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Kind is the user-facing class of a transaction failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindUserRejected
	KindReverted
	KindNetwork
	KindInsufficientBalance
	KindInsufficientAllowance
	// KindBenign errors are noise from competing wallet extensions and are
	// not shown to the user.
	KindBenign
)

func (k Kind) String() string {
	switch k {
	case KindUserRejected:
		return "user_rejected"
	case KindReverted:
		return "reverted"
	case KindNetwork:
		return "network"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindInsufficientAllowance:
		return "insufficient_allowance"
	case KindBenign:
		return "benign"
	default:
		return "unknown"
	}
}

var (
	ErrInsufficientBalance   = errors.New("txflow: insufficient balance")
	ErrInsufficientAllowance = errors.New("txflow: insufficient allowance")
)

// userRejectedCode is the EIP-1193 code for a request the user declined.
const userRejectedCode = 4001

const benignWalletConflict = "cannot redefine property: ethereum"

// Classify maps err onto a Kind. Nil maps to KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	msg := strings.ToLower(err.Error())

	var rpcErr rpc.Error
	switch {
	case strings.Contains(msg, benignWalletConflict):
		return KindBenign
	case errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode,
		strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "user denied"):
		return KindUserRejected
	case errors.Is(err, ErrInsufficientBalance),
		strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "exceeds balance"):
		return KindInsufficientBalance
	case errors.Is(err, ErrInsufficientAllowance),
		strings.Contains(msg, "insufficient allowance"),
		strings.Contains(msg, "exceeds allowance"):
		return KindInsufficientAllowance
	case errors.Is(err, ErrReverted),
		strings.Contains(msg, "execution reverted"),
		revertReason(err) != "":
		return KindReverted
	case isNetwork(err):
		return KindNetwork
	default:
		return KindUnknown
	}
}

func isNetwork(err error) bool {
	var netErr net.Error
	var httpErr rpc.HTTPError
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) || errors.As(err, &httpErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "network error")
}

// IsBenignWalletConflict reports whether err is the injected-provider clash
// raised when several wallet extensions are installed.
func IsBenignWalletConflict(err error) bool {
	return Classify(err) == KindBenign
}

// IsUserRejected reports whether the user declined the request.
func IsUserRejected(err error) bool {
	return Classify(err) == KindUserRejected
}

// revertMessages maps contract revert identifiers to user messages, first
// match wins.
var revertMessages = []struct {
	needle  string
	message string
}{
	{"LBRouter__InsufficientAmountOut", "Price moved beyond your slippage tolerance."},
	{"LBRouter__AmountSlippageCaught", "Amounts moved beyond your slippage tolerance."},
	{"LBRouter__IdSlippageCaught", "The active bin moved beyond your bin slippage."},
	{"LBRouter__DeadlineExceeded", "The transaction deadline passed before it was mined."},
	{"LBRouter__MaxAmountInExceeded", "The required input exceeds your maximum."},
	{"LBRouter__PairNotCreated", "This pool does not exist."},
	{"LBPair__OutOfLiquidity", "Not enough liquidity in the pool for this trade."},
	{"LBPair__ZeroShares", "The amount is too small for the selected bins."},
	{"LBPair__ZeroAmount", "The amount is too small for the selected bins."},
	{"LBToken__BurnExceedsBalance", "The withdrawal exceeds your position."},
	{"LBToken__SpenderNotApproved", "The router is not approved to move your position."},
	{"TRANSFER_FROM_FAILED", "Token transfer failed. Check your approval."},
}

// UserMessage returns a short message suitable for display. Benign errors
// return an empty string.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindBenign:
		return ""
	case KindUserRejected:
		return "Transaction rejected in your wallet."
	case KindInsufficientBalance:
		return "Insufficient balance for this transaction."
	case KindInsufficientAllowance:
		return "Token approval required."
	case KindNetwork:
		return "Network error. Please try again."
	case KindReverted:
		text := err.Error()
		if reason := revertReason(err); reason != "" {
			text = reason
		}
		for _, r := range revertMessages {
			if strings.Contains(text, r.needle) {
				return r.message
			}
		}
		if reason := revertReason(err); reason != "" {
			return "Transaction reverted: " + reason
		}
		return "Transaction reverted."
	default:
		if err == nil {
			return ""
		}
		return "Transaction failed."
	}
}

// revertReason decodes an Error(string) payload carried by an RPC data
// error, or returns "".
func revertReason(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return ""
	}
	data, decErr := hexutil.Decode(hexData)
	if decErr != nil {
		return ""
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return ""
	}
	return reason
}

// --- Pre-flight checks ---

// BalanceReader reads ERC-20 state. *lbpair.Reader satisfies it.
type BalanceReader interface {
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// CheckBalance fails with ErrInsufficientBalance when owner holds less than
// amount of token.
func CheckBalance(ctx context.Context, r BalanceReader, token, owner common.Address, amount *big.Int) error {
	have, err := r.TokenBalance(ctx, token, owner)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, have, amount)
	}
	return nil
}

// CheckAllowance fails with ErrInsufficientAllowance when spender may move
// less than amount of owner's token.
func CheckAllowance(ctx context.Context, r BalanceReader, token, owner, spender common.Address, amount *big.Int) error {
	have, err := r.Allowance(ctx, token, owner, spender)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	if have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: approved %s, need %s", ErrInsufficientAllowance, have, amount)
	}
	return nil
}
