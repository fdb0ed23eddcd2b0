// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testSeriesAddress = common.HexToAddress(DefaultSeriesContractAddress)
	testBrandAddress  = common.HexToAddress(DefaultBrandRegistryAddress)
)

// revertError mimics the error a node returns for a reverted eth_call
type revertError struct {
	reason string
}

func (e *revertError) Error() string {
	return "execution reverted: " + e.reason
}

func (e *revertError) ErrorCode() int {
	return 3
}

func (e *revertError) ErrorData() any {
	return e.reason
}

type fakeClaim struct {
	seriesID  uint64
	claimed   bool
	claimedBy common.Address
	claimedAt uint64
}

// fakeBackend is an in-memory stand-in for a node running both contracts
type fakeBackend struct {
	mu       sync.Mutex
	chainID  *big.Int
	block    uint64
	now      uint64
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	calls    map[string]int

	series     map[uint64]*rawSeries
	claims     map[string]*fakeClaim
	claimers   map[uint64][]common.Address
	tokens     map[uint64]common.Address
	nextSeries uint64
	nextToken  uint64

	brands     map[common.Address]*rawBrand
	brandOrder []common.Address
	fee        *big.Int
	owner      common.Address
	balance    *big.Int

	// failure injection
	callErr    error
	sendErr    error
	failTx     map[string]bool
	dropEvents map[string]bool

	// callGate holds view calls until closed; callStarted is signalled as
	// each held call arrives
	callGate    chan struct{}
	callStarted chan struct{}
}

func newFakeBackend(owner common.Address) *fakeBackend {
	return &fakeBackend{
		chainID:    big.NewInt(BaseSepoliaChainID),
		block:      100,
		now:        1700000000,
		nonces:     make(map[common.Address]uint64),
		receipts:   make(map[common.Hash]*types.Receipt),
		calls:      make(map[string]int),
		series:     make(map[uint64]*rawSeries),
		claims:     make(map[string]*fakeClaim),
		claimers:   make(map[uint64][]common.Address),
		tokens:     make(map[uint64]common.Address),
		brands:     make(map[common.Address]*rawBrand),
		fee:        big.NewInt(1000),
		owner:      owner,
		balance:    new(big.Int),
		failTx:     make(map[string]bool),
		dropEvents: make(map[string]bool),
	}
}

func (f *fakeBackend) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeBackend) contractABI(addr *common.Address) (abi.ABI, error) {
	switch {
	case addr == nil:
		return abi.ABI{}, errors.New("contract creation not supported")
	case *addr == testSeriesAddress:
		return ProductSeriesNFTABI, nil
	case *addr == testBrandAddress:
		return BrandRegistryABI, nil
	default:
		return abi.ABI{}, fmt.Errorf("no contract at %s", addr.Hex())
	}
}

func decodeInput(contractABI abi.ABI, data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("short calldata")
	}
	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (f *fakeBackend) CodeAt(
	ctx context.Context,
	contract common.Address,
	blockNumber *big.Int,
) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingCodeAt(
	ctx context.Context,
	account common.Address,
) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) HeaderByNumber(
	ctx context.Context,
	number *big.Int,
) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(f.block)}, nil
}

func (f *fakeBackend) PendingNonceAt(
	ctx context.Context,
	account common.Address,
) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeBackend) EstimateGas(
	ctx context.Context,
	call ethereum.CallMsg,
) (uint64, error) {
	return 200000, nil
}

func (f *fakeBackend) FilterLogs(
	ctx context.Context,
	q ethereum.FilterQuery,
) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeBackend) SubscribeFilterLogs(
	ctx context.Context,
	q ethereum.FilterQuery,
	ch chan<- types.Log,
) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (f *fakeBackend) TransactionReceipt(
	ctx context.Context,
	txHash common.Hash,
) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) CallContract(
	ctx context.Context,
	call ethereum.CallMsg,
	blockNumber *big.Int,
) ([]byte, error) {
	if f.callGate != nil {
		select {
		case f.callStarted <- struct{}{}:
		default:
		}
		select {
		case <-f.callGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	contractABI, err := f.contractABI(call.To)
	if err != nil {
		return nil, err
	}
	method, args, err := decodeInput(contractABI, call.Data)
	if err != nil {
		return nil, err
	}
	f.calls[method.Name]++
	out, err := f.view(method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (f *fakeBackend) view(name string, args []any) ([]any, error) {
	switch name {
	case "readSeries":
		s, ok := f.series[args[0].(*big.Int).Uint64()]
		if !ok {
			return nil, &revertError{reason: "Series does not exist"}
		}
		return []any{*s}, nil
	case "checkClaimLink":
		c, ok := f.claims[args[0].(string)]
		if !ok {
			return []any{new(big.Int), false, common.Address{}, new(big.Int)}, nil
		}
		return []any{
			new(big.Int).SetUint64(c.seriesID),
			c.claimed,
			c.claimedBy,
			new(big.Int).SetUint64(c.claimedAt),
		}, nil
	case "getBrandSeries":
		ids := []*big.Int{}
		for id := uint64(1); id < f.nextSeries+1; id++ {
			if s, ok := f.series[id]; ok && s.BrandOwner == args[0].(common.Address) {
				ids = append(ids, new(big.Int).SetUint64(id))
			}
		}
		return []any{ids}, nil
	case "getSeriesClaimers":
		claimers := f.claimers[args[0].(*big.Int).Uint64()]
		if claimers == nil {
			claimers = []common.Address{}
		}
		return []any{claimers}, nil
	case "totalSeries":
		return []any{new(big.Int).SetUint64(f.nextSeries)}, nil
	case "totalNFTsMinted":
		return []any{new(big.Int).SetUint64(f.nextToken)}, nil
	case "tokenURI":
		id := args[0].(*big.Int).Uint64()
		if _, ok := f.tokens[id]; !ok {
			return nil, &revertError{reason: "ERC721: invalid token ID"}
		}
		return []any{fmt.Sprintf("ipfs://token/%d", id)}, nil
	case "ownerOf":
		owner, ok := f.tokens[args[0].(*big.Int).Uint64()]
		if !ok {
			return nil, &revertError{reason: "ERC721: invalid token ID"}
		}
		return []any{owner}, nil
	case "balanceOf":
		var n int64
		for _, owner := range f.tokens {
			if owner == args[0].(common.Address) {
				n++
			}
		}
		return []any{big.NewInt(n)}, nil
	case "readBrand":
		b, ok := f.brands[args[0].(common.Address)]
		if !ok {
			return nil, &revertError{reason: "Brand not registered"}
		}
		return []any{*b}, nil
	case "isBrandRegistered":
		_, ok := f.brands[args[0].(common.Address)]
		return []any{ok}, nil
	case "getBrandName":
		b, ok := f.brands[args[0].(common.Address)]
		if !ok {
			return []any{""}, nil
		}
		return []any{b.BrandName}, nil
	case "getAllBrands":
		brands := append([]common.Address{}, f.brandOrder...)
		return []any{brands}, nil
	case "totalBrandsRegistered":
		return []any{big.NewInt(int64(len(f.brandOrder)))}, nil
	case "getRegistrationFee", "registrationFee":
		return []any{new(big.Int).Set(f.fee)}, nil
	case "owner":
		return []any{f.owner}, nil
	case "contractBalance":
		return []any{new(big.Int).Set(f.balance)}, nil
	default:
		return nil, fmt.Errorf("view %s not implemented", name)
	}
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	from, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return err
	}
	if tx.Nonce() != f.nonces[from] {
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), f.nonces[from])
	}
	contractABI, err := f.contractABI(tx.To())
	if err != nil {
		return err
	}
	method, args, err := decodeInput(contractABI, tx.Data())
	if err != nil {
		return err
	}
	f.nonces[from]++
	f.block++
	f.now += 12
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(f.block),
		GasUsed:     21000,
	}
	logs, ok := f.apply(contractABI, *tx.To(), method.Name, from, tx.Value(), args)
	if !ok || f.failTx[method.Name] {
		receipt.Status = types.ReceiptStatusFailed
		logs = nil
	}
	if f.dropEvents[method.Name] {
		logs = nil
	}
	for i, l := range logs {
		l.TxHash = tx.Hash()
		l.BlockNumber = f.block
		l.Index = uint(i)
	}
	receipt.Logs = logs
	f.receipts[tx.Hash()] = receipt
	return nil
}

// apply runs a state changing call. It returns false where the contract
// would revert.
func (f *fakeBackend) apply(
	contractABI abi.ABI,
	addr common.Address,
	name string,
	from common.Address,
	value *big.Int,
	args []any,
) ([]*types.Log, bool) {
	switch name {
	case "mintSeries":
		if _, ok := f.brands[from]; !ok {
			return nil, false
		}
		f.nextSeries++
		id := new(big.Int).SetUint64(f.nextSeries)
		f.series[f.nextSeries] = &rawSeries{
			SeriesName:  args[0].(string),
			ImageURI:    args[1].(string),
			Description: args[2].(string),
			MaxSupply:   args[3].(*big.Int),
			Minted:      new(big.Int),
			Claimed:     new(big.Int),
			BrandOwner:  from,
			CreatedAt:   new(big.Int).SetUint64(f.now),
			IsActive:    true,
		}
		return []*types.Log{
			eventLog(contractABI, addr, "SeriesCreated", id, from, args[0], args[3]),
		}, true
	case "generateClaimLinks":
		id := args[0].(*big.Int)
		s, ok := f.series[id.Uint64()]
		if !ok || s.BrandOwner != from {
			return nil, false
		}
		codes := args[1].([]string)
		for _, code := range codes {
			if _, exists := f.claims[code]; exists {
				return nil, false
			}
		}
		for _, code := range codes {
			f.claims[code] = &fakeClaim{seriesID: id.Uint64()}
		}
		return []*types.Log{
			eventLog(contractABI, addr, "ClaimLinksGenerated", id, big.NewInt(int64(len(codes)))),
		}, true
	case "claimNFT":
		code := args[0].(string)
		c, ok := f.claims[code]
		if !ok || c.claimed {
			return nil, false
		}
		s := f.series[c.seriesID]
		if s == nil || !s.IsActive || s.Minted.Cmp(s.MaxSupply) >= 0 {
			return nil, false
		}
		c.claimed = true
		c.claimedBy = from
		c.claimedAt = f.now
		s.Minted = new(big.Int).Add(s.Minted, big.NewInt(1))
		s.Claimed = new(big.Int).Add(s.Claimed, big.NewInt(1))
		f.nextToken++
		f.tokens[f.nextToken] = from
		f.claimers[c.seriesID] = append(f.claimers[c.seriesID], from)
		tokenID := new(big.Int).SetUint64(f.nextToken)
		return []*types.Log{
			eventLog(contractABI, addr, "Transfer", common.Address{}, from, tokenID),
			eventLog(
				contractABI,
				addr,
				"NFTClaimed",
				tokenID,
				new(big.Int).SetUint64(c.seriesID),
				from,
				code,
			),
		}, true
	case "toggleSeriesStatus":
		id := args[0].(*big.Int)
		s, ok := f.series[id.Uint64()]
		if !ok || s.BrandOwner != from {
			return nil, false
		}
		s.IsActive = !s.IsActive
		return []*types.Log{
			eventLog(contractABI, addr, "SeriesStatusToggled", id, s.IsActive),
		}, true
	case "mintBrand":
		if _, ok := f.brands[from]; ok || value == nil || value.Cmp(f.fee) < 0 {
			return nil, false
		}
		f.brands[from] = &rawBrand{
			BrandName:    args[0].(string),
			LogoURI:      args[1].(string),
			Description:  args[2].(string),
			RegisteredAt: new(big.Int).SetUint64(f.now),
			IsVerified:   true,
		}
		f.brandOrder = append(f.brandOrder, from)
		f.balance = new(big.Int).Add(f.balance, value)
		return []*types.Log{
			eventLog(
				contractABI,
				addr,
				"BrandRegistered",
				from,
				args[0],
				args[1],
				args[2],
				value,
				new(big.Int).SetUint64(f.now),
			),
		}, true
	case "updateRegistrationFee":
		if from != f.owner {
			return nil, false
		}
		oldFee := f.fee
		f.fee = args[0].(*big.Int)
		return []*types.Log{
			eventLog(contractABI, addr, "RegistrationFeeUpdated", oldFee, f.fee),
		}, true
	case "withdraw":
		if from != f.owner {
			return nil, false
		}
		f.balance = new(big.Int)
		return nil, true
	case "transferOwnership":
		if from != f.owner {
			return nil, false
		}
		prev := f.owner
		f.owner = args[0].(common.Address)
		return []*types.Log{
			eventLog(contractABI, addr, "OwnershipTransferred", prev, f.owner),
		}, true
	default:
		return nil, false
	}
}

func eventLog(
	contractABI abi.ABI,
	addr common.Address,
	name string,
	args ...any,
) *types.Log {
	ev := contractABI.Events[name]
	topics := []common.Hash{ev.ID}
	var data []any
	for i, input := range ev.Inputs {
		if !input.Indexed {
			data = append(data, args[i])
			continue
		}
		topic, err := abi.MakeTopics([]any{args[i]})
		if err != nil {
			panic(err)
		}
		topics = append(topics, topic[0][0])
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: addr,
		Topics:  topics,
		Data:    packed,
	}
}
