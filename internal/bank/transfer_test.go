package bank

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tellerline/teller/internal/ledger"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/store"
)

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.customer(t, "alice@bank.test")
	bob := f.customer(t, "bob@bank.test")
	from := f.account(t, alice, "500.00")
	to := f.account(t, bob, "0")

	res, err := f.svc.Transfer(ctx, alice, TransferInput{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        dec("120.50"),
		Description:   "rent share",
	})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Len(t, res.Reference, 22)
	assert.Equal(t, model.TxTransferOut, res.Debit.Type)
	assert.Equal(t, "379.50", res.Debit.BalanceAfter.StringFixed(2))
	assert.Equal(t, model.TxTransferIn, res.Credit.Type)
	assert.Equal(t, "120.50", res.Credit.BalanceAfter.StringFixed(2))
	assert.Equal(t, res.EntryID, res.Debit.EntryID)

	assert.Equal(t, "379.50", f.balance(t, from.ID))
	assert.Equal(t, "120.50", f.balance(t, to.ID))

	bobLines, err := f.svc.AccountStatement(ctx, bob, to.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, bobLines, 1)
	assert.Equal(t, from.ID, bobLines[0].CounterpartyID)

	byNumber, err := f.svc.Transfer(ctx, alice, TransferInput{FromAccountID: from.ID, ToAccountNumber: to.Number, Amount: dec("9.50")})
	require.NoError(t, err)
	assert.Equal(t, to.ID, byNumber.Credit.AccountID)

	assert.Equal(t, 2, f.obs.transfers[OutcomeOK])
	f.requireBalanced(t)
}

func TestTransferRefusals(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MaxTransfer = dec("1000") })
	ctx := context.Background()
	alice := f.customer(t, "alice@bank.test")
	bob := f.customer(t, "bob@bank.test")
	from := f.account(t, alice, "100.00")
	to := f.account(t, bob, "50.00")
	frozen := f.account(t, bob, "0")
	_, err := f.svc.FreezeAccount(ctx, f.admin, frozen.ID, "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor Actor
		in    TransferInput
		want  error
	}{
		{"zero amount", alice, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("0")}, ErrInvalidAmount},
		{"negative amount", alice, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("-1")}, ErrInvalidAmount},
		{"sub-cent", alice, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("0.001")}, ErrInvalidAmount},
		{"over cap", alice, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("1000.01")}, ErrLimitExceeded},
		{"same account", alice, TransferInput{FromAccountID: from.ID, ToAccountID: from.ID, Amount: dec("1")}, ErrInvalidInput},
		{"no destination", alice, TransferInput{FromAccountID: from.ID, Amount: dec("1")}, ErrInvalidInput},
		{"bad check digit", alice, TransferInput{FromAccountID: from.ID, ToAccountNumber: "1234567890", Amount: dec("1")}, ErrInvalidInput},
		{"unknown destination", alice, TransferInput{FromAccountID: from.ID, ToAccountID: "missing", Amount: dec("1")}, ErrNotFound},
		{"not owner", bob, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("1")}, ErrForbidden},
		{"frozen destination", alice, TransferInput{FromAccountID: from.ID, ToAccountID: frozen.ID, Amount: dec("1")}, ErrInvalidState},
		{"system destination", alice, TransferInput{FromAccountID: from.ID, ToAccountID: ledger.CashAccountID, Amount: dec("1")}, ErrInvalidInput},
		{"insufficient funds", alice, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("100.01")}, ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Transfer(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, "100.00", f.balance(t, from.ID))
	assert.Equal(t, "50.00", f.balance(t, to.ID))
	assert.Equal(t, 1, f.obs.transfers[OutcomeInsufficientFunds])
	assert.Equal(t, len(tests)-1, f.obs.transfers[OutcomeRejected])
	f.requireBalanced(t)
}

func TestTransferIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.customer(t, "alice@bank.test")
	bob := f.customer(t, "bob@bank.test")
	from := f.account(t, alice, "100.00")
	to := f.account(t, bob, "0")

	in := TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("40.00"), IdempotencyKey: "req-1"}
	first, err := f.svc.Transfer(ctx, alice, in)
	require.NoError(t, err)
	second, err := f.svc.Transfer(ctx, alice, in)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Reference, second.Reference)
	assert.Equal(t, first.EntryID, second.EntryID)
	assert.Equal(t, first.Debit.ID, second.Debit.ID)
	assert.Equal(t, "60.00", f.balance(t, from.ID))
	assert.Equal(t, 1, f.obs.transfers[OutcomeReplayed])

	_, err = f.svc.Transfer(ctx, bob, TransferInput{FromAccountID: to.ID, ToAccountID: from.ID, Amount: dec("1"), IdempotencyKey: "req-1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTransferDailyLimit(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.DailyTransfer = dec("150") })
	ctx := context.Background()
	alice := f.customer(t, "alice@bank.test")
	bob := f.customer(t, "bob@bank.test")
	from := f.account(t, alice, "1000.00")
	to := f.account(t, bob, "0")

	_, err := f.svc.Transfer(ctx, alice, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("100")})
	require.NoError(t, err)
	_, err = f.svc.Transfer(ctx, alice, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("60")})
	assert.ErrorIs(t, err, ErrLimitExceeded)

	_, err = f.svc.Transfer(ctx, f.admin, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("60")})
	assert.NoError(t, err, "staff transfers are not subject to the customer daily limit")
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.customer(t, "alice@bank.test")
	bob := f.customer(t, "bob@bank.test")
	from := f.account(t, alice, "100.00")
	to := f.account(t, bob, "0")

	const workers = 20
	results := make([]error, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := f.svc.Transfer(ctx, alice, TransferInput{
				FromAccountID: from.ID,
				ToAccountID:   to.ID,
				Amount:        dec("10.00"),
				Description:   fmt.Sprintf("payment %d", i),
			})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ok, refused := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			refused++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, refused)
	assert.Equal(t, "0.00", f.balance(t, from.ID))
	assert.Equal(t, "100.00", f.balance(t, to.ID))
	f.requireBalanced(t)
}

func TestConcurrentRequestsShareIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.customer(t, "alice@bank.test")
	bob := f.customer(t, "bob@bank.test")
	from := f.account(t, alice, "100.00")
	to := f.account(t, bob, "0")

	refs := make([]string, 8)
	var g errgroup.Group
	for i := range refs {
		g.Go(func() error {
			res, err := f.svc.Transfer(ctx, alice, TransferInput{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("25"), IdempotencyKey: "same"})
			if err != nil {
				return err
			}
			refs[i] = res.Reference
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, r := range refs {
		assert.Equal(t, refs[0], r)
	}
	assert.Equal(t, "75.00", f.balance(t, from.ID))
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.customer(t, "alice@bank.test")
	a := f.account(t, alice, "0")

	_, err := f.svc.Deposit(ctx, alice, a.ID, dec("10"), "")
	assert.ErrorIs(t, err, ErrForbidden)

	line, err := f.svc.Deposit(ctx, f.admin, a.ID, dec("75.25"), "branch deposit")
	require.NoError(t, err)
	assert.Equal(t, model.TxDeposit, line.Type)
	assert.Equal(t, "75.25", line.BalanceAfter.StringFixed(2))

	_, err = f.svc.Withdraw(ctx, f.admin, a.ID, dec("100"), "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	line, err = f.svc.Withdraw(ctx, f.admin, a.ID, dec("25.25"), "")
	require.NoError(t, err)
	assert.Equal(t, "50.00", line.BalanceAfter.StringFixed(2))
	assert.Equal(t, "-50.00", f.balance(t, ledger.CashAccountID))

	found, err := f.svc.SearchTransactions(ctx, f.admin, store.TransactionFilter{Type: model.TxWithdrawal})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].AccountID)

	_, err = f.svc.SearchTransactions(ctx, alice, store.TransactionFilter{})
	assert.ErrorIs(t, err, ErrForbidden)

	legs, err := f.svc.Journal(ctx, f.admin, "")
	require.NoError(t, err)
	assert.Len(t, legs, 4)
	f.requireBalanced(t)
}
