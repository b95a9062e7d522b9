package api

import (
	"net/http"
	"time"

	chatQueries "github.com/felixgeelhaar/caravan/internal/chat/application/queries"
	expenseCommands "github.com/felixgeelhaar/caravan/internal/expenses/application/commands"
	expenseQueries "github.com/felixgeelhaar/caravan/internal/expenses/application/queries"
	expenseDomain "github.com/felixgeelhaar/caravan/internal/expenses/domain"
	pollCommands "github.com/felixgeelhaar/caravan/internal/polls/application/commands"
	pollQueries "github.com/felixgeelhaar/caravan/internal/polls/application/queries"
	"github.com/google/uuid"
)

func (h *handlers) chatHistory(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		return err
	}
	messages, err := h.c.ChatHistory.Handle(r.Context(), chatQueries.HistoryQuery{
		PlanID:   planID,
		ViewerID: principalFrom(r.Context()).UserID,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(messages))
	return nil
}

type createPollRequest struct {
	Question string   `json:"question" validate:"required,max=300"`
	Options  []string `json:"options" validate:"required,min=2,max=10,dive,required,max=200"`
}

type voteRequest struct {
	OptionID string `json:"optionId" validate:"required,uuid"`
}

func (h *handlers) listPolls(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	polls, err := h.c.ListPolls.Handle(r.Context(), pollQueries.ListPollsQuery{
		PlanID:   planID,
		ViewerID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(polls))
	return nil
}

func (h *handlers) createPoll(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	var req createPollRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}
	id, err := h.c.CreatePoll.Handle(r.Context(), pollCommands.CreatePollCommand{
		PlanID:    planID,
		CreatorID: principalFrom(r.Context()).UserID,
		Question:  req.Question,
		Options:   req.Options,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
	return nil
}

func (h *handlers) vote(w http.ResponseWriter, r *http.Request) error {
	pollID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	var req voteRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}
	err = h.c.Vote.Handle(r.Context(), pollCommands.VoteCommand{
		PollID:   pollID,
		UserID:   principalFrom(r.Context()).UserID,
		OptionID: uuid.MustParse(req.OptionID),
	})
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *handlers) closePoll(w http.ResponseWriter, r *http.Request) error {
	pollID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	err = h.c.ClosePoll.Handle(r.Context(), pollCommands.ClosePollCommand{
		PollID: pollID,
		UserID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type shareRequest struct {
	UserID      string `json:"userId" validate:"required,uuid"`
	AmountMinor int64  `json:"amountMinor" validate:"min=0"`
}

type createExpenseRequest struct {
	Description  string         `json:"description" validate:"required,max=200"`
	Purpose      string         `json:"purpose" validate:"max=100"`
	TotalMinor   int64          `json:"totalMinor" validate:"required,gt=0"`
	Currency     string         `json:"currency" validate:"required,len=3"`
	ExpenseDate  *time.Time     `json:"expenseDate"`
	ReceiptPath  string         `json:"receiptPath" validate:"max=300"`
	Participants []string       `json:"participants" validate:"max=100,dive,uuid"`
	Shares       []shareRequest `json:"shares" validate:"max=100,dive"`
}

func (req createExpenseRequest) command(planID, payerID uuid.UUID) expenseCommands.CreateExpenseCommand {
	cmd := expenseCommands.CreateExpenseCommand{
		PlanID:      planID,
		PayerID:     payerID,
		Description: req.Description,
		Purpose:     req.Purpose,
		TotalMinor:  req.TotalMinor,
		Currency:    req.Currency,
		ReceiptPath: req.ReceiptPath,
	}
	if req.ExpenseDate != nil {
		cmd.ExpenseDate = *req.ExpenseDate
	}
	for _, p := range req.Participants {
		cmd.Participants = append(cmd.Participants, uuid.MustParse(p))
	}
	for _, s := range req.Shares {
		cmd.Shares = append(cmd.Shares, expenseDomain.Share{UserID: uuid.MustParse(s.UserID), AmountMinor: s.AmountMinor})
	}
	return cmd
}

func (h *handlers) listExpenses(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	expenses, err := h.c.ListExpenses.Handle(r.Context(), expenseQueries.ListExpensesQuery{
		PlanID:   planID,
		ViewerID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(expenses))
	return nil
}

func (h *handlers) createExpense(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	var req createExpenseRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}
	id, err := h.c.CreateExpense.Handle(r.Context(), req.command(planID, principalFrom(r.Context()).UserID))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
	return nil
}

func (h *handlers) expenseSummary(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	summary, err := h.c.ExpenseSummary.Handle(r.Context(), expenseQueries.SummaryQuery{
		PlanID: planID,
		UserID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(summary))
	return nil
}

func (h *handlers) markPaid(w http.ResponseWriter, r *http.Request) error {
	expenseID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	allocationID, err := uuidParam(r, "allocationId")
	if err != nil {
		return err
	}
	err = h.c.MarkPaid.Handle(r.Context(), expenseCommands.MarkPaidCommand{
		ExpenseID:    expenseID,
		AllocationID: allocationID,
		ActorID:      principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
