package worker

import (
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/jnicholls/banking-exercise/core/account"
	"github.com/jnicholls/banking-exercise/core/txn"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkerAppliesTransactionsInSubmitOrder(t *testing.T) {
	w := New(zap.NewNop(), nil)
	w.Submit(txn.Transaction{ID: 1, Client: 7, Kind: txn.Deposit, Amount: amtT(t, "10")})
	w.Submit(txn.Transaction{ID: 2, Client: 7, Kind: txn.Withdrawal, Amount: amtT(t, "3")})

	accounts, err := w.Stop()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.True(t, accounts[0].Available.Equal(amtT(t, "7")))
}

func TestWorkerTracksMultipleShardedClients(t *testing.T) {
	w := New(zap.NewNop(), nil)
	w.Submit(txn.Transaction{ID: 1, Client: 1, Kind: txn.Deposit, Amount: amtT(t, "10")})
	w.Submit(txn.Transaction{ID: 2, Client: 2, Kind: txn.Deposit, Amount: amtT(t, "20")})

	accounts, err := w.Stop()
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	require.True(t, accounts[0].Available.Equal(amtT(t, "10")))
	require.True(t, accounts[1].Available.Equal(amtT(t, "20")))
}

func TestWorkerInvokesRejectHandlerOnBusinessError(t *testing.T) {
	var rejected []*account.TxnError
	w := New(zap.NewNop(), func(err *account.TxnError) {
		rejected = append(rejected, err)
	})

	w.Submit(txn.Transaction{ID: 1, Client: 1, Kind: txn.Withdrawal, Amount: amtT(t, "10")})
	_, err := w.Stop()
	require.NoError(t, err)

	require.Len(t, rejected, 1)
	require.Equal(t, account.InsufficientFunds, rejected[0].Kind)
}

func TestWorkerSurfacesPanicInsteadOfCrashing(t *testing.T) {
	w := New(zap.NewNop(), func(err *account.TxnError) {
		panic("reject handler blew up")
	})

	w.Submit(txn.Transaction{ID: 1, Client: 1, Kind: txn.Withdrawal, Amount: amtT(t, "10")})
	_, err := w.Stop()
	require.Error(t, err)
	require.Contains(t, err.Error(), "panic in worker")
}

func amtT(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
