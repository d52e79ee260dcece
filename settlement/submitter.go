package settlement

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
)

//LocalSubmitter sends fills to an in-process contract as sender. A fill that reverts is
//still posted; its failure is reported by WaitFill, the way a mined reverted tx would be.
type LocalSubmitter struct {
	contract *Contract
	sender   common.Address

	mu       sync.Mutex
	receipts map[common.Hash]*chain.Receipt
}

func NewLocalSubmitter(contract *Contract, sender common.Address) *LocalSubmitter {
	return &LocalSubmitter{contract: contract, sender: sender, receipts: make(map[common.Hash]*chain.Receipt)}
}

func (s *LocalSubmitter) SubmitFill(ctx context.Context, order *orders.RFQOrder, signature []byte, takingAmount *big.Int, makingAmount *big.Int) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	_, _, receipt, _ := s.contract.FillOrderRFQ(s.sender, order, signature, takingAmount, makingAmount)

	s.mu.Lock()
	s.receipts[receipt.TxHash] = receipt
	s.mu.Unlock()
	return receipt.TxHash, nil
}

func (s *LocalSubmitter) WaitFill(ctx context.Context, hash common.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	receipt, ok := s.receipts[hash]
	delete(s.receipts, hash)
	s.mu.Unlock()

	if !ok {
		return errors.Errorf("unknown transaction %s", hash.Hex())
	}
	if !receipt.Succeeded() {
		return receipt.Err
	}
	return nil
}
