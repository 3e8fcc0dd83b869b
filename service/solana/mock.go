package solana

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// MockRPCClient is an in-memory RPCClient for tests.
// It's behavior-focused: set what it should return, then inspect what was sent.
type MockRPCClient struct {
	mu sync.Mutex

	Blockhash   solana.Hash
	Accounts    map[solana.PublicKey][]byte
	Statuses    map[solana.Signature]*rpc.SignatureStatusesResult
	SendErr     error
	Err         error
	SendResult  solana.Signature
	sent        []*solana.Transaction
	blockhashes int
}

// NewMockRPCClient creates an empty mock with a fixed blockhash.
func NewMockRPCClient() *MockRPCClient {
	return &MockRPCClient{
		Blockhash: solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"),
		Accounts:  make(map[solana.PublicKey][]byte),
		Statuses:  make(map[solana.Signature]*rpc.SignatureStatusesResult),
	}
}

// SetAccount stores raw account data.
func (m *MockRPCClient) SetAccount(address solana.PublicKey, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accounts[address] = data
}

// SetStatus stores a signature status.
func (m *MockRPCClient) SetStatus(sig solana.Signature, status *rpc.SignatureStatusesResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[sig] = status
}

// Sent returns the transactions passed to SendTransactionWithOpts.
func (m *MockRPCClient) Sent() []*solana.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*solana.Transaction, len(m.sent))
	copy(out, m.sent)
	return out
}

// BlockhashCalls returns how many times a blockhash was requested.
func (m *MockRPCClient) BlockhashCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blockhashes
}

func (m *MockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockhashes++
	if m.Err != nil {
		return nil, m.Err
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            m.Blockhash,
			LastValidBlockHeight: 100,
		},
	}, nil
}

func (m *MockRPCClient) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	data, ok := m.Accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{
			Data: rpc.DataBytesOrJSONFromBytes(data),
		},
	}, nil
}

func (m *MockRPCClient) GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var prefix []byte
	if opts != nil && len(opts.Filters) > 0 && opts.Filters[0].Memcmp != nil {
		prefix = opts.Filters[0].Memcmp.Bytes
	}

	out := make(rpc.GetProgramAccountsResult, 0, len(m.Accounts))
	for address, data := range m.Accounts {
		if len(data) < len(prefix) || string(data[:len(prefix)]) != string(prefix) {
			continue
		}
		out = append(out, &rpc.KeyedAccount{
			Pubkey:  address,
			Account: &rpc.Account{Owner: programID, Data: rpc.DataBytesOrJSONFromBytes(data)},
		})
	}
	return out, nil
}

func (m *MockRPCClient) SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return solana.Signature{}, m.SendErr
	}
	m.sent = append(m.sent, transaction)
	if !m.SendResult.IsZero() {
		return m.SendResult, nil
	}
	if len(transaction.Signatures) > 0 {
		return transaction.Signatures[0], nil
	}
	return solana.Signature{}, nil
}

func (m *MockRPCClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := &rpc.GetSignatureStatusesResult{}
	for _, sig := range signatures {
		out.Value = append(out.Value, m.Statuses[sig])
	}
	return out, nil
}
