package commands

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
	rpcClient "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/rpc_client"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/wallet"
)

//dialChain connects to the configured node with the primary wallet as sender.
func dialChain(ctx context.Context) (*rpcClient.Client, *wallet.EOA, error) {
	if conf.Chain.NodeHttpEndpoint == "" {
		return nil, nil, errors.New("chain.node_http_endpoint is required for this command")
	}
	eoa, err := wallet.Load(conf.Wallet, chainID())
	if err != nil {
		return nil, nil, err
	}
	client, err := rpcClient.Dial(ctx, conf.Chain, contractAbis.MustLoad(), eoa)
	if err != nil {
		return nil, nil, err
	}
	return client, eoa, nil
}

//dialReader connects to the configured node for reads only.
func dialReader(ctx context.Context) (*rpcClient.Client, error) {
	if conf.Chain.NodeHttpEndpoint == "" {
		return nil, errors.New("chain.node_http_endpoint is required for this command")
	}
	return rpcClient.Dial(ctx, conf.Chain, contractAbis.MustLoad(), nil)
}

//senderWallet is the account that submits fills: the session key when one is configured,
//otherwise the primary wallet.
func senderWallet() (*wallet.EOA, error) {
	sessionKey, err := wallet.LoadSessionKey(conf.Wallet)
	if err != nil {
		return nil, err
	}
	if sessionKey != nil {
		return wallet.New(sessionKey, chainID()), nil
	}
	return wallet.Load(conf.Wallet, chainID())
}

func signingCodec() (*orders.Codec, error) {
	return orders.NewCodec(contractAbis.MustLoad(), orders.Domain{
		Name:              conf.Chain.DomainName,
		Version:           conf.Chain.DomainVersion,
		ChainID:           chainID(),
		VerifyingContract: common.HexToAddress(conf.Chain.ContractAddress),
	})
}

//waitTx waits for hash and prints the outcome of the named action.
func waitTx(ctx context.Context, client *rpcClient.Client, action string, hash common.Hash) error {
	info("%s sent %s", action, hash.Hex())
	if err := client.Wait(ctx, hash); err != nil {
		return errors.Wrap(err, action)
	}
	success("%s confirmed", action)
	return nil
}

//parseAmount reads a decimal amount in whole tokens of the given decimals.
func parseAmount(value string, decimals uint8) (*big.Int, error) {
	amount, err := quotes.ToUnits(value, decimals)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, errors.Errorf("amount %s must be positive", value)
	}
	return amount, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, errors.Errorf("%q is not an address", value)
	}
	return common.HexToAddress(value), nil
}
