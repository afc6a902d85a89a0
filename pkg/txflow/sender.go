package txflow

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Backend is the node surface needed to sign and broadcast.
// *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// gasHeadroom is the percentage added on top of the gas estimate.
const gasHeadroom = 20

// KeySender signs with a local private key.
type KeySender struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer

	// serialises nonce assignment
	mu sync.Mutex
}

// NewKeySender creates a sender for chainID.
func NewKeySender(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int) *KeySender {
	return &KeySender{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
	}
}

// From returns the signing address.
func (s *KeySender) From() common.Address {
	return s.from
}

// Send implements Sender.
func (s *KeySender) Send(ctx context.Context, req TxRequest) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	to := req.To
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: s.from, To: &to, Value: value, Data: req.Data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasHeadroom / 100

	tx, err := types.SignNewTx(s.key, s.signer, &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}
