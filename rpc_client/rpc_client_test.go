package rpcClient

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/wallet"
)

var (
	router  = common.HexToAddress("0xc0de000000000000000000000000000000000001")
	owner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	session = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

//fakeBackend answers router calls from canned values and records sent transactions.
type fakeBackend struct {
	t        *testing.T
	abis     *contractAbis.ABIs
	outputs  map[string][]interface{}
	sent     []*types.Transaction
	receipts map[common.Hash][]*types.Receipt
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method, err := f.abis.RFQRouter.MethodById(call.Data[:4])
	require.NoError(f.t, err)
	return method.Outputs.Pack(f.outputs[method.Name]...)
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 210000, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(30_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

//TransactionReceipt hands out the queued receipts for hash one at a time; nil means not mined yet.
func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	queue := f.receipts[hash]
	if len(queue) == 0 {
		return nil, ethereum.NotFound
	}
	receipt := queue[0]
	f.receipts[hash] = queue[1:]
	if receipt == nil {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func newClient(t *testing.T) (*Client, *fakeBackend) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	abis := contractAbis.MustLoad()
	backend := &fakeBackend{
		t:        t,
		abis:     abis,
		outputs:  make(map[string][]interface{}),
		receipts: make(map[common.Hash][]*types.Receipt),
	}
	return New(backend, abis, router, wallet.New(key, big.NewInt(137)), time.Millisecond), backend
}

func TestSessionOf(t *testing.T) {
	client, backend := newClient(t)
	backend.outputs["session"] = []interface{}{owner, session, big.NewInt(1700003600), big.NewInt(4)}

	s, err := client.SessionOf(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, owner, s.Creator)
	assert.Equal(t, session, s.SessionKey)
	assert.Equal(t, uint64(1700003600), s.ExpirationTime)
	assert.Equal(t, uint64(4), s.TxCount)
}

func TestInvalidatedOrderRFQ(t *testing.T) {
	client, backend := newClient(t)
	word := new(big.Int).SetBit(new(big.Int), 3, 1)
	backend.outputs["invalidatorForOrderRFQ"] = []interface{}{word}

	invalidated, err := client.InvalidatedOrderRFQ(context.Background(), owner, 256+3)
	require.NoError(t, err)
	assert.True(t, invalidated)

	invalidated, err = client.InvalidatedOrderRFQ(context.Background(), owner, 4)
	require.NoError(t, err)
	assert.False(t, invalidated)
}

func TestSubmitFillPacksCalldata(t *testing.T) {
	client, backend := newClient(t)
	order := &orders.RFQOrder{
		Info:           orders.PackInfo(9, 1700000060),
		FeeAmount:      big.NewInt(5),
		TakerAsset:     common.HexToAddress("0x3333333333333333333333333333333333333333"),
		MakerAsset:     common.HexToAddress("0x4444444444444444444444444444444444444444"),
		TakerAssetData: []byte{0xaa},
		MakerAssetData: []byte{0xbb},
	}

	hash, err := client.SubmitFill(context.Background(), order, []byte{1, 2, 3}, nil, big.NewInt(7))
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, router, *tx.To())
	assert.Equal(t, uint64(210000), tx.Gas())

	method, err := backend.abis.RFQRouter.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "fillOrderRFQ", method.Name)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Len(t, args, 4)
	assert.Equal(t, []byte{1, 2, 3}, args[1])
	assert.Equal(t, int64(0), args[2].(*big.Int).Int64())
	assert.Equal(t, int64(7), args[3].(*big.Int).Int64())

	_, err = client.CancelOrderRFQ(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, backend.sent, 2)
	assert.Equal(t, uint64(1), backend.sent[1].Nonce())
}

func TestWaitFill(t *testing.T) {
	client, backend := newClient(t)
	mined := common.HexToHash("0x01")
	reverted := common.HexToHash("0x02")
	backend.receipts[mined] = []*types.Receipt{nil, nil, {Status: types.ReceiptStatusSuccessful}}
	backend.receipts[reverted] = []*types.Receipt{{Status: types.ReceiptStatusFailed}}

	require.NoError(t, client.WaitFill(context.Background(), mined))
	assert.Error(t, client.WaitFill(context.Background(), reverted))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, client.WaitFill(ctx, common.HexToHash("0x03")), context.DeadlineExceeded)
}
