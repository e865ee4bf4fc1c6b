package identity

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RegistryAddress is the ENS registry on Ethereum mainnet.
var RegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const ensABIJSON = `[
  {"inputs": [{"name": "node", "type": "bytes32"}], "name": "resolver", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "node", "type": "bytes32"}], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "node", "type": "bytes32"}], "name": "addr", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

var (
	ensABI     abi.ABI
	ensABIOnce sync.Once
	ensABIErr  error
)

func ensABIInstance() (abi.ABI, error) {
	ensABIOnce.Do(func() {
		ensABI, ensABIErr = abi.JSON(strings.NewReader(ensABIJSON))
	})
	return ensABI, ensABIErr
}

// ContractCaller is satisfied by chain.Client.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ENSBackend reads the reverse record of an address from the ENS contracts
// and only accepts it if the name resolves forward to the same address.
type ENSBackend struct {
	caller   ContractCaller
	registry common.Address
}

func NewENSBackend(caller ContractCaller) *ENSBackend {
	return &ENSBackend{caller: caller, registry: RegistryAddress}
}

// NameHash implements the ENS namehash algorithm (EIP-137).
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash)
	}
	return node
}

// ReverseNode is the namehash of <address>.addr.reverse.
func ReverseNode(address common.Address) common.Hash {
	return NameHash(strings.ToLower(address.Hex()[2:]) + ".addr.reverse")
}

func (b *ENSBackend) LookupName(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address: %s", address)
	}
	addr := common.HexToAddress(address)

	parsed, err := ensABIInstance()
	if err != nil {
		return "", fmt.Errorf("parse ens abi: %w", err)
	}

	reverse := ReverseNode(addr)
	resolver, err := b.resolverFor(ctx, parsed, reverse)
	if err != nil || resolver == (common.Address{}) {
		return "", err
	}

	values, err := b.call(ctx, parsed, resolver, "name", reverse)
	if err != nil {
		return "", err
	}
	name, ok := values[0].(string)
	if !ok || name == "" {
		return "", nil
	}

	forward := NameHash(name)
	forwardResolver, err := b.resolverFor(ctx, parsed, forward)
	if err != nil || forwardResolver == (common.Address{}) {
		return "", err
	}
	values, err = b.call(ctx, parsed, forwardResolver, "addr", forward)
	if err != nil {
		return "", err
	}
	resolved, ok := values[0].(common.Address)
	if !ok || resolved != addr {
		return "", nil
	}

	return name, nil
}

func (b *ENSBackend) resolverFor(ctx context.Context, parsed abi.ABI, node common.Hash) (common.Address, error) {
	values, err := b.call(ctx, parsed, b.registry, "resolver", node)
	if err != nil {
		return common.Address{}, err
	}
	resolver, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected resolver type %T", values[0])
	}
	return resolver, nil
}

func (b *ENSBackend) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, node common.Hash) ([]interface{}, error) {
	data, err := parsed.Pack(method, [32]byte(node))
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := b.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return values, nil
}
