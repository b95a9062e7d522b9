package persistence

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/caravan/internal/expenses/application/commands"
	"github.com/felixgeelhaar/caravan/internal/expenses/application/queries"
	"github.com/felixgeelhaar/caravan/internal/expenses/domain"
	planningQueries "github.com/felixgeelhaar/caravan/internal/planning/application/queries"
	planningPersistence "github.com/felixgeelhaar/caravan/internal/planning/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database/dbtest"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenses_SplitSettleSummarize(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	deps := commands.Deps{
		Expenses: NewSQLExpenseRepository(conn),
		Access: planningQueries.NewPlanAccessHandler(
			planningPersistence.NewSQLPlanRepository(conn),
			planningPersistence.NewSQLMembershipRepository(conn),
		),
		Outbox: outbox.NewSQLRepository(conn),
		UoW:    database.NewUnitOfWork(conn),
	}
	owner := dbtest.User(t, conn, "Olivia")
	ben := dbtest.User(t, conn, "Ben")
	cleo := dbtest.User(t, conn, "Cleo")
	outsider := dbtest.User(t, conn, "Otto")
	planID := dbtest.Plan(t, conn, owner, "IN_PROGRESS")
	dbtest.Member(t, conn, planID, ben, "APPLIED_ACCEPTED")
	dbtest.Member(t, conn, planID, cleo, "INVITED_ACCEPTED")
	dbtest.Member(t, conn, planID, outsider, "APPLIED_CANCELLED")

	create := commands.NewCreateExpenseHandler(deps)
	expenseID, err := create.Handle(ctx, commands.CreateExpenseCommand{
		PlanID: planID, PayerID: owner, Description: "Dinner", TotalMinor: 10000, Currency: "eur",
	})
	require.NoError(t, err)

	stored, err := deps.Expenses.FindByID(ctx, expenseID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", stored.Currency())
	require.Len(t, stored.Allocations(), 3)
	var benAlloc domain.Allocation
	for _, a := range stored.Allocations() {
		switch a.UserID {
		case owner:
			assert.Equal(t, int64(3334), a.AmountMinor)
			assert.True(t, a.Paid)
		case ben:
			benAlloc = a
			assert.Equal(t, int64(3333), a.AmountMinor)
			assert.False(t, a.Paid)
		}
	}

	_, err = create.Handle(ctx, commands.CreateExpenseCommand{
		PlanID: planID, PayerID: ben, Description: "Taxi", TotalMinor: 900, Currency: "EUR",
		Participants: []uuid.UUID{ben, outsider},
	})
	assert.ErrorIs(t, err, domain.ErrParticipantNotMember)
	_, err = create.Handle(ctx, commands.CreateExpenseCommand{
		PlanID: planID, PayerID: outsider, Description: "Snacks", TotalMinor: 500, Currency: "EUR",
	})
	assert.ErrorIs(t, err, sharedApplication.ErrNotActiveMember)

	markPaid := commands.NewMarkPaidHandler(deps)
	err = markPaid.Handle(ctx, commands.MarkPaidCommand{ExpenseID: expenseID, AllocationID: benAlloc.ID, ActorID: ben})
	assert.ErrorIs(t, err, domain.ErrNotPayer)
	require.NoError(t, markPaid.Handle(ctx, commands.MarkPaidCommand{ExpenseID: expenseID, AllocationID: benAlloc.ID, ActorID: owner}))

	summary, err := queries.NewSummaryHandler(deps.Expenses, deps.Access).Handle(ctx, queries.SummaryQuery{PlanID: planID, UserID: owner})
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, domain.Summary{Currency: "EUR", Paid: 10000, Share: 3334, OwedToYou: 3333, Balance: 6666}, summary[0])

	list, err := queries.NewListExpensesHandler(deps.Expenses, deps.Access).Handle(ctx, queries.ListExpensesQuery{PlanID: planID, ViewerID: outsider})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Dinner", list[0].Description)
}
