package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualSplit(t *testing.T) {
	payer, a, b := uuid.New(), uuid.New(), uuid.New()

	shares := EqualSplit(1000, []uuid.UUID{a, payer, b}, payer)
	require.Len(t, shares, 3)
	assert.Equal(t, int64(333), shares[0].AmountMinor)
	assert.Equal(t, int64(334), shares[1].AmountMinor)
	assert.Equal(t, int64(333), shares[2].AmountMinor)

	shares = EqualSplit(101, []uuid.UUID{a, b}, payer)
	assert.Equal(t, int64(51), shares[0].AmountMinor)
	assert.Equal(t, int64(50), shares[1].AmountMinor)

	assert.Nil(t, EqualSplit(100, nil, payer))
}

func TestNewExpense_Validation(t *testing.T) {
	payer := uuid.New()
	base := ExpenseSpec{PlanID: uuid.New(), PayerID: payer, Description: "Hostel", TotalMinor: 200, Currency: "usd"}
	share := []Share{{UserID: payer, AmountMinor: 200}}

	tests := []struct {
		name   string
		mutate func(*ExpenseSpec)
		shares []Share
		err    error
	}{
		{"no description", func(s *ExpenseSpec) { s.Description = " " }, share, ErrEmptyDescription},
		{"zero total", func(s *ExpenseSpec) { s.TotalMinor = 0 }, share, ErrInvalidAmount},
		{"bad currency", func(s *ExpenseSpec) { s.Currency = "euro" }, share, ErrInvalidCurrency},
		{"no shares", func(*ExpenseSpec) {}, nil, ErrNoParticipants},
		{"mismatch", func(*ExpenseSpec) {}, []Share{{UserID: payer, AmountMinor: 150}}, ErrAllocationMismatch},
		{"duplicate", func(*ExpenseSpec) {}, []Share{{UserID: payer, AmountMinor: 100}, {UserID: payer, AmountMinor: 100}}, ErrDuplicateParticipant},
		{"negative", func(*ExpenseSpec) {}, []Share{{UserID: payer, AmountMinor: 300}, {UserID: uuid.New(), AmountMinor: -100}}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base
			tt.mutate(&spec)
			_, err := NewExpense(spec, tt.shares)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	e, err := NewExpense(base, share)
	require.NoError(t, err)
	assert.Equal(t, "USD", e.Currency())
	assert.False(t, e.Spec().ExpenseDate.IsZero())
	assert.Equal(t, RoutingKeyExpenseRecorded, e.DomainEvents()[0].RoutingKey())
}

func TestExpense_MarkPaid(t *testing.T) {
	payer, friend := uuid.New(), uuid.New()
	e, err := NewExpense(ExpenseSpec{PlanID: uuid.New(), PayerID: payer, Description: "Fuel", TotalMinor: 100, Currency: "EUR"},
		EqualSplit(100, []uuid.UUID{payer, friend}, payer))
	require.NoError(t, err)
	e.ClearDomainEvents()
	friendAlloc := e.Allocations()[1]

	assert.ErrorIs(t, e.MarkPaid(friendAlloc.ID, friend), ErrNotPayer)
	assert.ErrorIs(t, e.MarkPaid(uuid.New(), payer), ErrAllocationNotFound)
	require.NoError(t, e.MarkPaid(friendAlloc.ID, payer))
	require.NoError(t, e.MarkPaid(friendAlloc.ID, payer))

	assert.True(t, e.Allocations()[1].Paid)
	assert.Len(t, e.DomainEvents(), 1)
}

func TestSummarize(t *testing.T) {
	me, friend := uuid.New(), uuid.New()
	plan := uuid.New()
	mine, err := NewExpense(ExpenseSpec{PlanID: plan, PayerID: me, Description: "Room", TotalMinor: 100, Currency: "EUR"},
		EqualSplit(100, []uuid.UUID{me, friend}, me))
	require.NoError(t, err)
	theirs, err := NewExpense(ExpenseSpec{PlanID: plan, PayerID: friend, Description: "Boat", TotalMinor: 60, Currency: "EUR"},
		EqualSplit(60, []uuid.UUID{me, friend}, friend))
	require.NoError(t, err)
	dollars, err := NewExpense(ExpenseSpec{PlanID: plan, PayerID: friend, Description: "Museum", TotalMinor: 20, Currency: "USD"},
		[]Share{{UserID: me, AmountMinor: 20}})
	require.NoError(t, err)

	got := Summarize([]*Expense{mine, theirs, dollars}, me)

	require.Len(t, got, 2)
	assert.Equal(t, Summary{Currency: "EUR", Paid: 100, Share: 80, Outstanding: 30, OwedToYou: 50, Balance: 20}, got[0])
	assert.Equal(t, Summary{Currency: "USD", Share: 20, Outstanding: 20, Balance: -20}, got[1])
}
