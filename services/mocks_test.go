package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"settleup-backend/database"
	"settleup-backend/models"
	"settleup-backend/repository"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// noTx runs units of work straight against the fakes, like a store without
// transaction support.
type noTx struct{}

func (noTx) WithTx(ctx context.Context, fn func(database.Querier) error) error {
	return fn(nil)
}

type mockGroupRepo struct {
	mu       sync.Mutex
	groups   map[string]*models.Group
	members  map[string][]models.Member
	deleted  []string
	isMember func(groupID, userID string) (bool, error)
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{
		groups:  make(map[string]*models.Group),
		members: make(map[string][]models.Member),
	}
}

func (m *mockGroupRepo) addGroup(id, currency string, memberIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[id] = &models.Group{ID: id, Name: "group " + id, Currency: currency}
	for i, uid := range memberIDs {
		role := models.MemberRoleMember
		if i == 0 {
			role = models.MemberRoleAdmin
		}
		m.members[id] = append(m.members[id], models.Member{UserID: uid, Name: uid, Role: role})
	}
}

func (m *mockGroupRepo) GetByID(ctx context.Context, id string) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *mockGroupRepo) ListByUser(ctx context.Context, userID string) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Group
	for id, members := range m.members {
		for _, mem := range members {
			if mem.UserID == userID {
				out = append(out, *m.groups[id])
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockGroupRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.groups, id)
	delete(m.members, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockGroupRepo) GetMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Member(nil), m.members[groupID]...), nil
}

func (m *mockGroupRepo) GetMember(ctx context.Context, groupID, userID string) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members[groupID] {
		if mem.UserID == userID {
			cp := mem
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockGroupRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	if m.isMember != nil {
		return m.isMember(groupID, userID)
	}
	_, err := m.GetMember(ctx, groupID, userID)
	return err == nil, nil
}

func (m *mockGroupRepo) WithTx(tx database.Querier) repository.GroupRepository { return m }

type mockExpenseRepo struct {
	mu       sync.Mutex
	groups   *mockGroupRepo
	expenses map[string]*models.Expense
	order    []string
}

func newMockExpenseRepo(groups *mockGroupRepo) *mockExpenseRepo {
	return &mockExpenseRepo{groups: groups, expenses: make(map[string]*models.Expense)}
}

// addExpense stores an expense with explicit shares, bypassing validation.
func (m *mockExpenseRepo) addExpense(id, groupID, payerID, amount string, shares map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &models.Expense{ID: id, GroupID: groupID, PayerID: payerID, Amount: d(amount), SplitType: models.SplitTypeExactAmount}
	for uid, share := range shares {
		e.Splits = append(e.Splits, models.Split{ID: id + "-" + uid, ExpenseID: id, UserID: uid, ShareAmount: d(share)})
	}
	m.expenses[id] = e
	m.order = append(m.order, id)
}

func (m *mockExpenseRepo) GetByID(ctx context.Context, id string) (*models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	cp.Splits = append([]models.Split(nil), e.Splits...)
	return &cp, nil
}

func (m *mockExpenseRepo) ListByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Expense
	for _, id := range m.order {
		if e, ok := m.expenses[id]; ok && e.GroupID == groupID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockExpenseRepo) CountByGroup(ctx context.Context, groupID string) (int, error) {
	list, _ := m.ListByGroup(ctx, groupID)
	return len(list), nil
}

func (m *mockExpenseRepo) Create(ctx context.Context, expense *models.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *expense
	cp.Splits = nil
	m.expenses[expense.ID] = &cp
	m.order = append(m.order, expense.ID)
	return nil
}

func (m *mockExpenseRepo) Update(ctx context.Context, expense *models.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.expenses[expense.ID]
	if !ok {
		return repository.ErrNotFound
	}
	splits := existing.Splits
	cp := *expense
	cp.Splits = splits
	m.expenses[expense.ID] = &cp
	return nil
}

func (m *mockExpenseRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.expenses, id)
	return nil
}

func (m *mockExpenseRepo) GetSplits(ctx context.Context, expenseID string) ([]models.Split, error) {
	e, err := m.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	return e.Splits, nil
}

func (m *mockExpenseRepo) CreateSplit(ctx context.Context, split *models.Split) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[split.ExpenseID]
	if !ok {
		return errors.New("foreign key violation")
	}
	e.Splits = append(e.Splits, *split)
	return nil
}

func (m *mockExpenseRepo) DeleteSplits(ctx context.Context, expenseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.expenses[expenseID]; ok {
		e.Splits = nil
	}
	return nil
}

func (m *mockExpenseRepo) GetMemberTotals(ctx context.Context, groupID string) ([]models.MemberTotals, error) {
	members, _ := m.groups.GetMembers(ctx, groupID)

	m.mu.Lock()
	defer m.mu.Unlock()
	paid := make(map[string]decimal.Decimal)
	owed := make(map[string]decimal.Decimal)
	for _, e := range m.expenses {
		if e.GroupID != groupID {
			continue
		}
		paid[e.PayerID] = paid[e.PayerID].Add(e.Amount)
		for _, s := range e.Splits {
			owed[s.UserID] = owed[s.UserID].Add(s.ShareAmount)
		}
	}

	out := make([]models.MemberTotals, 0, len(members))
	for _, mem := range members {
		out = append(out, models.MemberTotals{UserID: mem.UserID, TotalPaid: paid[mem.UserID], TotalOwed: owed[mem.UserID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *mockExpenseRepo) WithTx(tx database.Querier) repository.ExpenseRepository { return m }

// mockSettlementRepo keeps settlements in memory and applies the same guards
// as the SQL conditional writes, under one mutex.
type mockSettlementRepo struct {
	mu                sync.Mutex
	settlements       map[string]*models.Settlement
	payments          map[string][]models.Payment
	clock             time.Time
	failCreatePayment bool
	// beforeApply runs before the guarded payment write; tests use it to
	// interleave a competing request.
	beforeApply func()
}

func newMockSettlementRepo() *mockSettlementRepo {
	return &mockSettlementRepo{
		settlements: make(map[string]*models.Settlement),
		payments:    make(map[string][]models.Payment),
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockSettlementRepo) put(s models.Settlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s
	m.settlements[s.ID] = &cp
}

func (m *mockSettlementRepo) get(id string) models.Settlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.settlements[id]
}

func (m *mockSettlementRepo) paymentCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments[id])
}

func (m *mockSettlementRepo) GetByID(ctx context.Context, id string) (*models.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSettlementRepo) ListByGroup(ctx context.Context, groupID string, statuses []models.SettlementStatus) ([]models.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Settlement
	for _, s := range m.settlements {
		if s.GroupID != groupID {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, s.Status) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalAmount.Cmp(out[j].TotalAmount); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func hasStatus(statuses []models.SettlementStatus, status models.SettlementStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *mockSettlementRepo) Create(ctx context.Context, s *models.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.FromUserID == s.ToUserID {
		return errors.New("check violation")
	}
	s.Version = 1
	cp := *s
	m.settlements[s.ID] = &cp
	return nil
}

func (m *mockSettlementRepo) CreatePending(ctx context.Context, s *models.Settlement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.settlements {
		if existing.GroupID == s.GroupID && existing.FromUserID == s.FromUserID && existing.ToUserID == s.ToUserID &&
			existing.Kind == models.SettlementKindTracked && existing.Status.Open() {
			return false, nil
		}
	}
	s.Kind = models.SettlementKindTracked
	s.Status = models.SettlementStatusPending
	s.TotalPaid = decimal.Zero
	s.RemainingAmount = s.TotalAmount
	s.Version = 1
	cp := *s
	m.settlements[s.ID] = &cp
	return true, nil
}

func (m *mockSettlementRepo) DeletePendingByGroup(ctx context.Context, groupID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.settlements {
		if s.GroupID == groupID && s.Kind == models.SettlementKindTracked && s.Status == models.SettlementStatusPending {
			delete(m.settlements, id)
			delete(m.payments, id)
			n++
		}
	}
	return n, nil
}

func (m *mockSettlementRepo) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.settlements {
		if s.GroupID == groupID {
			delete(m.settlements, id)
			delete(m.payments, id)
			n++
		}
	}
	return n, nil
}

func (m *mockSettlementRepo) ApplyPayment(ctx context.Context, id string, amount decimal.Decimal, completeStatus models.SettlementStatus) (*models.Settlement, error) {
	if m.beforeApply != nil {
		m.beforeApply()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[id]
	if !ok || s.Kind != models.SettlementKindTracked || !s.Status.Payable() || s.RemainingAmount.LessThan(amount) {
		return nil, repository.ErrConditionFailed
	}
	s.TotalPaid = s.TotalPaid.Add(amount)
	s.RemainingAmount = s.RemainingAmount.Sub(amount)
	if s.RemainingAmount.LessThanOrEqual(decimal.Zero) {
		s.Status = completeStatus
	} else {
		s.Status = models.SettlementStatusPartial
	}
	s.Version++
	cp := *s
	return &cp, nil
}

func (m *mockSettlementRepo) RevertPayment(ctx context.Context, id string, amount decimal.Decimal, fromStatuses []models.SettlementStatus) (*models.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[id]
	if !ok || s.Kind != models.SettlementKindTracked || !hasStatus(fromStatuses, s.Status) || s.TotalPaid.LessThan(amount) {
		return nil, repository.ErrConditionFailed
	}
	s.TotalPaid = s.TotalPaid.Sub(amount)
	s.RemainingAmount = s.RemainingAmount.Add(amount)
	if s.TotalPaid.IsPositive() {
		s.Status = models.SettlementStatusPartial
	} else {
		s.Status = models.SettlementStatusPending
	}
	s.Version++
	cp := *s
	return &cp, nil
}

func (m *mockSettlementRepo) TransitionStatus(ctx context.Context, id string, from, to models.SettlementStatus, actorID string) (*models.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[id]
	if !ok || s.Status != from || s.ToUserID != actorID {
		return nil, repository.ErrConditionFailed
	}
	s.Status = to
	s.Version++
	cp := *s
	return &cp, nil
}

func (m *mockSettlementRepo) CreatePayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreatePayment {
		return errors.New("insert failed")
	}
	m.clock = m.clock.Add(time.Second)
	p.PaidAt = m.clock
	m.payments[p.SettlementID] = append(m.payments[p.SettlementID], *p)
	return nil
}

func (m *mockSettlementRepo) DeletePayment(ctx context.Context, id string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid, list := range m.payments {
		for i, p := range list {
			if p.ID == id {
				m.payments[sid] = append(list[:i:i], list[i+1:]...)
				return p.Amount, nil
			}
		}
	}
	return decimal.Zero, repository.ErrNotFound
}

func (m *mockSettlementRepo) GetLatestPayment(ctx context.Context, settlementID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.payments[settlementID]
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	latest := list[0]
	for _, p := range list[1:] {
		if p.PaidAt.After(latest.PaidAt) {
			latest = p
		}
	}
	return &latest, nil
}

func (m *mockSettlementRepo) ListPayments(ctx context.Context, settlementID string) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append([]models.Payment(nil), m.payments[settlementID]...)
	sort.Slice(list, func(i, j int) bool { return list[i].PaidAt.After(list[j].PaidAt) })
	return list, nil
}

func (m *mockSettlementRepo) WithTx(tx database.Querier) repository.SettlementRepository { return m }

type fixture struct {
	groups      *mockGroupRepo
	expenses    *mockExpenseRepo
	settlements *mockSettlementRepo
	balances    BalanceService
	ledger      SettlementService
	payments    PaymentService
	expenseSvc  ExpenseService
	groupSvc    GroupService
}

func newFixture() *fixture {
	groups := newMockGroupRepo()
	expenses := newMockExpenseRepo(groups)
	settlements := newMockSettlementRepo()
	balances := NewBalanceService(expenses, groups)
	return &fixture{
		groups:      groups,
		expenses:    expenses,
		settlements: settlements,
		balances:    balances,
		ledger:      NewSettlementService(settlements, groups, balances, noTx{}, nil, BalanceThreshold),
		payments:    NewPaymentService(settlements, noTx{}, nil),
		expenseSvc:  NewExpenseService(expenses, groups, noTx{}),
		groupSvc:    NewGroupService(groups, expenses),
	}
}

func trackedSettlement(id, total string) models.Settlement {
	return models.Settlement{
		ID:              id,
		GroupID:         "g1",
		FromUserID:      "bob",
		ToUserID:        "alice",
		Kind:            models.SettlementKindTracked,
		TotalAmount:     d(total),
		TotalPaid:       decimal.Zero,
		RemainingAmount: d(total),
		Status:          models.SettlementStatusPending,
		Version:         1,
	}
}
