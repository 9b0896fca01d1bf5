package pipeline

import (
	"context"
	"io"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/exp/slices"

	"github.com/jnicholls/banking-exercise/core/account"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// sliceSource is an in-memory RecordSource for tests; it hands out rows in
// slice order and reports io.EOF once exhausted.
type sliceSource struct {
	rows []RawRecord
	next int
}

func (s *sliceSource) Read() (uint64, RawRecord, error) {
	if s.next >= len(s.rows) {
		return 0, RawRecord{}, io.EOF
	}
	order := uint64(s.next)
	rec := s.rows[s.next]
	s.next++
	return order, rec, nil
}

// recordingSink captures whatever the pipeline hands it, for assertion.
type recordingSink struct {
	accounts []*account.Account
}

func (s *recordingSink) Write(accounts []*account.Account) error {
	s.accounts = accounts
	return nil
}

func row(kind, client, tx, amount string) RawRecord {
	return RawRecord{Type: kind, Client: client, Tx: tx, Amount: amount}
}

func byClient(accounts []*account.Account) []*account.Account {
	sorted := append([]*account.Account(nil), accounts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

func amt(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestPipelineEndToEndDepositAndWithdrawal(t *testing.T) {
	src := &sliceSource{rows: []RawRecord{
		row("deposit", "1", "1", "10.0"),
		row("deposit", "2", "2", "20.0"),
		row("deposit", "1", "3", "5.0"),
		row("withdrawal", "1", "4", "7.0"),
		row("withdrawal", "2", "5", "50.0"), // rejected: insufficient funds
	}}
	sink := &recordingSink{}

	p := New(Config{Source: src, Sink: sink, NumWorkers: 2})
	require.NoError(t, p.Run(context.Background()))

	accounts := byClient(sink.accounts)
	require.Len(t, accounts, 2)
	require.True(t, accounts[0].Available.Equal(amt(t, "8.0")), "client 1 available: %s", accounts[0].Available)
	require.True(t, accounts[1].Available.Equal(amt(t, "20.0")), "client 2 available: %s", accounts[1].Available)
}

func TestPipelineDisputeHoldsFunds(t *testing.T) {
	src := &sliceSource{rows: []RawRecord{
		row("deposit", "1", "1", "10.0"),
		row("dispute", "1", "1", ""),
	}}
	sink := &recordingSink{}

	p := New(Config{Source: src, Sink: sink, NumWorkers: 1})
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, sink.accounts, 1)
	a := sink.accounts[0]
	require.True(t, a.Available.IsZero())
	require.True(t, a.Held.Equal(amt(t, "10.0")))
	require.True(t, a.Total().Equal(amt(t, "10.0")))
}

func TestPipelineChargebackLocksAccount(t *testing.T) {
	src := &sliceSource{rows: []RawRecord{
		row("deposit", "1", "1", "10.0"),
		row("dispute", "1", "1", ""),
		row("chargeback", "1", "1", ""),
	}}
	sink := &recordingSink{}

	p := New(Config{Source: src, Sink: sink, NumWorkers: 1})
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, sink.accounts, 1)
	a := sink.accounts[0]
	require.True(t, a.Locked)
	require.True(t, a.Held.IsZero())
}

func TestPipelineRejectsBadParse(t *testing.T) {
	src := &sliceSource{rows: []RawRecord{
		row("deposit", "1", "1", "not-a-number"),
	}}
	sink := &recordingSink{}

	p := New(Config{Source: src, Sink: sink, NumWorkers: 1})
	err := p.Run(context.Background())
	require.Error(t, err)
	require.Nil(t, sink.accounts)
}

// gapSource forges an ordering gap by skipping order 1 outright, which the
// dispatcher must surface as a fatal ErrOrderingGap at shutdown.
type gapSource struct {
	orders []uint64
	rows   []RawRecord
	next   int
}

func (s *gapSource) Read() (uint64, RawRecord, error) {
	if s.next >= len(s.rows) {
		return 0, RawRecord{}, io.EOF
	}
	order := s.orders[s.next]
	rec := s.rows[s.next]
	s.next++
	return order, rec, nil
}

func TestPipelineSurfacesOrderingGap(t *testing.T) {
	src := &gapSource{
		orders: []uint64{0, 2},
		rows: []RawRecord{
			row("deposit", "1", "1", "10.0"),
			row("deposit", "1", "2", "5.0"),
		},
	}
	sink := &recordingSink{}

	p := New(Config{Source: src, Sink: sink, NumWorkers: 1})
	err := p.Run(context.Background())
	require.Error(t, err)
}

// accountView is a comparable projection of account.Account used only to
// diff two runs' final states without reaching into unexported fields.
type accountView struct {
	ID        uint16
	Available string
	Total     string
	Locked    bool
}

func viewOf(accounts []*account.Account) []accountView {
	views := make([]accountView, len(accounts))
	for i, a := range accounts {
		views[i] = accountView{
			ID:        uint16(a.ID),
			Available: a.Available.StringFixed(4),
			Total:     a.Total().StringFixed(4),
			Locked:    a.Locked,
		}
	}
	return views
}

// TestPipelineIsOrderInvariant is property P3 from spec.md §8: regardless of
// how many goroutines the deserializer fans parsing across, the dispatcher
// re-sequences everything back to file order before a worker ever sees it,
// so final account state never depends on goroutine scheduling.
func TestPipelineIsOrderInvariant(t *testing.T) {
	const numClients = 6
	const numTxns = 300

	rows := make([]RawRecord, 0, numTxns)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < numTxns; i++ {
		client := rng.Intn(numClients) + 1
		rows = append(rows, row("deposit", itoa(client), itoa(i+1), "1.5"))
	}

	run := func(parallelism int) []accountView {
		src := &sliceSource{rows: append([]RawRecord(nil), rows...)}
		sink := &recordingSink{}
		p := New(Config{Source: src, Sink: sink, NumWorkers: 4, Parallelism: parallelism})
		require.NoError(t, p.Run(context.Background()))
		return viewOf(byClient(sink.accounts))
	}

	first := run(1)
	second := run(DefaultParallelism())

	require.True(t, slices.EqualFunc(first, second, func(a, b accountView) bool { return a == b }))
	require.Empty(t, cmp.Diff(first, second))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
