package contractAbis

import (
	"bytes"
	_ "embed"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

//go:embed rfq_router_abi.json
var rfqRouterJSON []byte

//go:embed erc20_abi.json
var erc20JSON []byte

//ABIs holds the parsed contract interfaces. It is built once and handed to every
//component that packs calldata or event logs.
type ABIs struct {
	RFQRouter *abi.ABI
	ERC20     *abi.ABI
}

func Load() (*ABIs, error) {
	router, err := parse("rfq router", rfqRouterJSON)
	if err != nil {
		return nil, err
	}
	erc20, err := parse("erc20", erc20JSON)
	if err != nil {
		return nil, err
	}
	return &ABIs{RFQRouter: router, ERC20: erc20}, nil
}

//MustLoad panics if the embedded ABI files are malformed.
func MustLoad() *ABIs {
	abis, err := Load()
	if err != nil {
		panic(err)
	}
	return abis
}

func parse(name string, raw []byte) (*abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s abi", name)
	}
	return &parsed, nil
}

//PackEvent encodes an event the same way the EVM would log it: topic 0 is the event id,
//indexed arguments follow as topics and the remaining arguments are ABI encoded into data.
//Arguments are passed in declaration order.
func PackEvent(contract *abi.ABI, name string, args ...interface{}) ([]common.Hash, []byte, error) {
	event, ok := contract.Events[name]
	if !ok {
		return nil, nil, errors.Errorf("unknown event %s", name)
	}
	if len(args) != len(event.Inputs) {
		return nil, nil, errors.Errorf("event %s takes %d arguments, got %d", name, len(event.Inputs), len(args))
	}

	var indexed []interface{}
	var plain []interface{}
	for i, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, args[i])
		} else {
			plain = append(plain, args[i])
		}
	}

	topics := []common.Hash{event.ID}
	if len(indexed) > 0 {
		query := make([][]interface{}, len(indexed))
		for i, arg := range indexed {
			query[i] = []interface{}{arg}
		}
		rules, err := abi.MakeTopics(query...)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to pack topics of %s", name)
		}
		for _, rule := range rules {
			topics = append(topics, rule[0])
		}
	}

	data, err := event.Inputs.NonIndexed().Pack(plain...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to pack data of %s", name)
	}
	return topics, data, nil
}

//UnpackEvent decodes a log emitted by the contract into its event definition and a map
//of argument name to value, indexed arguments included.
func UnpackEvent(contract *abi.ABI, log types.Log) (*abi.Event, map[string]interface{}, error) {
	if len(log.Topics) == 0 {
		return nil, nil, errors.New("log has no topics")
	}
	event, err := contract.EventByID(log.Topics[0])
	if err != nil {
		return nil, nil, errors.Wrap(err, "unknown event topic")
	}

	values := make(map[string]interface{})
	if len(log.Data) > 0 {
		if err := event.Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to unpack data of %s", event.Name)
		}
	}

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to parse topics of %s", event.Name)
		}
	}
	return event, values, nil
}
