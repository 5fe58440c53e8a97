package service_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmattos/bilheteria/internal/domain/models"
	"github.com/dmattos/bilheteria/internal/service"
	"github.com/dmattos/bilheteria/internal/storage"
)

var testPrices = service.TicketPrices{FullCents: 1000, HalfCents: 500}

type fakeUserRepo struct {
	users map[string]*models.User // ключ — username
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = int64(len(f.users) + 1)
	f.users[user.Username] = user
	return user, nil
}

func (f *fakeUserRepo) SetUserActive(ctx context.Context, id int64, active bool) error {
	for _, u := range f.users {
		if u.ID == id {
			u.IsActive = active
			return nil
		}
	}
	return storage.ErrUserNotFound
}

type fakeOrderRepo struct {
	nextID int64
	orders map[int64]*models.Order
	items  map[int64][]models.OrderItem
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		nextID: 1,
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]models.OrderItem),
	}
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	id := f.nextID
	f.nextID++
	stored := *order
	stored.ID = id
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	f.orders[id] = &stored
	return id, nil
}

func (f *fakeOrderRepo) InsertItemsTx(ctx context.Context, tx *sql.Tx, orderID int64, items []models.OrderItem) error {
	f.items[orderID] = append(f.items[orderID], items...)
	return nil
}

func (f *fakeOrderRepo) DeleteItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) error {
	delete(f.items, orderID)
	return nil
}

func (f *fakeOrderRepo) UpdateHeaderTx(ctx context.Context, tx *sql.Tx, orderID int64, state, city, note *string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return storage.ErrOrderNotFound
	}
	order.State = state
	order.City = city
	order.Note = note
	return nil
}

func (f *fakeOrderRepo) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) SoftDeleteTx(ctx context.Context, tx *sql.Tx, id int64, deletedAt time.Time) error {
	order, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	if order.DeletedAt != nil {
		return storage.ErrOrderAlreadyDeleted
	}
	order.DeletedAt = &deletedAt
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64, includeDeleted bool) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	if order.DeletedAt != nil && !includeDeleted {
		return nil, storage.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) GetItemsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	var out []*models.OrderItem
	for i := range f.items[orderID] {
		out = append(out, &f.items[orderID][i])
	}
	return out, nil
}

func (f *fakeOrderRepo) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*models.OrderSummary, error) {
	var out []*models.OrderSummary
	for _, o := range f.orders {
		if o.DeletedAt != nil && !filter.IncludeDeleted {
			continue
		}
		out = append(out, &models.OrderSummary{ID: o.ID, CreatedAt: o.CreatedAt, UserID: o.UserID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeGroupRepo struct {
	groups map[int64]*models.GroupVisit // ключ — orderID
}

var _ storage.GroupStorage = (*fakeGroupRepo)(nil)

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{groups: make(map[int64]*models.GroupVisit)}
}

func (f *fakeGroupRepo) CreateGroupVisitTx(ctx context.Context, tx *sql.Tx, group *models.GroupVisit) (int64, error) {
	id := int64(len(f.groups) + 1)
	stored := *group
	stored.ID = id
	f.groups[group.OrderID] = &stored
	return id, nil
}

func (f *fakeGroupRepo) GetGroupByOrderID(ctx context.Context, orderID int64) (*models.GroupVisit, error) {
	group, ok := f.groups[orderID]
	if !ok {
		return nil, storage.ErrGroupNotFound
	}
	return group, nil
}

type fakeEventRepo struct {
	events []*models.OrderEvent
}

var _ storage.EventStorage = (*fakeEventRepo)(nil)

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{}
}

func (f *fakeEventRepo) CreateEventTx(ctx context.Context, tx *sql.Tx, event *models.OrderEvent) error {
	stored := *event
	stored.ID = int64(len(f.events) + 1)
	stored.CreatedAt = time.Now().Add(time.Duration(len(f.events)) * time.Millisecond)
	f.events = append(f.events, &stored)
	return nil
}

func (f *fakeEventRepo) GetEventsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderEvent, error) {
	var out []*models.OrderEvent
	for _, e := range f.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) countByAction(orderID int64, action string) int {
	n := 0
	for _, e := range f.events {
		if e.OrderID == orderID && e.Action == action {
			n++
		}
	}
	return n
}

type fakeLedgerRepo struct {
	groups      []storage.ItemGroup
	stateGroups []storage.StateGroup
}

var _ storage.LedgerStorage = (*fakeLedgerRepo)(nil)

func (f *fakeLedgerRepo) SelectDailyGroups(ctx context.Context, from, to time.Time) ([]storage.ItemGroup, error) {
	return f.groups, nil
}

func (f *fakeLedgerRepo) SelectStateGroups(ctx context.Context, from, to time.Time) ([]storage.StateGroup, error) {
	return f.stateGroups, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// newOrderService собирает сервис заказов на фиктивных репозиториях и sqlmock.
// Транзакции реальны только на уровне Begin/Commit: репозитории их игнорируют.
func newOrderService(t *testing.T) (service.OrderService, sqlmock.Sqlmock, *fakeOrderRepo, *fakeGroupRepo, *fakeEventRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	orderRepo := newFakeOrderRepo()
	groupRepo := newFakeGroupRepo()
	eventRepo := newFakeEventRepo()
	svc := service.NewOrderService(testLogger(), db, testPrices, orderRepo, groupRepo, eventRepo)
	return svc, mock, orderRepo, groupRepo, eventRepo
}

func strPtr(s string) *string { return &s }

func TestAuthService_Login_Success(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	fakeRepo := newFakeUserRepo()
	authSvc := service.NewAuthService(testLogger(), fakeRepo, 60*time.Minute)
	ctx := context.Background()

	password := "password123"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)
	_, err = fakeRepo.CreateUser(ctx, &models.User{
		Username: "maria",
		PassHash: hashed,
		Role:     models.RoleClerk,
		IsActive: true,
	})
	assert.NoError(t, err)

	token, err := authSvc.Login(ctx, "maria", password)
	assert.NoError(t, err, "Login should succeed with correct password")
	assert.NotEmpty(t, token, "Token should be returned")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	fakeRepo := newFakeUserRepo()
	authSvc := service.NewAuthService(testLogger(), fakeRepo, 60*time.Minute)
	ctx := context.Background()

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	assert.NoError(t, err)
	_, err = fakeRepo.CreateUser(ctx, &models.User{
		Username: "maria",
		PassHash: hashed,
		Role:     models.RoleClerk,
		IsActive: true,
	})
	assert.NoError(t, err)

	token, err := authSvc.Login(ctx, "maria", "wrongpassword")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	assert.Empty(t, token)
}

func TestAuthService_Login_DeactivatedUser(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	fakeRepo := newFakeUserRepo()
	authSvc := service.NewAuthService(testLogger(), fakeRepo, 60*time.Minute)
	ctx := context.Background()

	password := "password123"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)
	_, err = fakeRepo.CreateUser(ctx, &models.User{
		Username: "inactive",
		PassHash: hashed,
		Role:     models.RoleClerk,
		IsActive: false,
	})
	assert.NoError(t, err)

	// Правильный пароль не спасает деактивированного пользователя
	token, err := authSvc.Login(ctx, "inactive", password)
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	assert.Empty(t, token)
}

func TestCreateOrder_Success(t *testing.T) {
	svc, mock, orderRepo, _, eventRepo := newOrderService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()

	orderID, err := svc.CreateOrder(ctx, service.CreateOrderInput{
		Channel:       models.ChannelCounter,
		PaymentMethod: "dinheiro",
		Items: []service.OrderItemInput{
			{TicketType: models.TicketFull, Qty: 2},
			{TicketType: models.TicketHalf, Qty: 1, DiscountReason: strPtr("student")},
		},
	}, 3, nil)
	assert.NoError(t, err)
	assert.NotZero(t, orderID)

	// Цены назначены по тарифу, а не взяты из входа
	items := orderRepo.items[orderID]
	assert.Len(t, items, 2)
	assert.Equal(t, int64(1000), items[0].UnitPriceCents)
	assert.Equal(t, int64(500), items[1].UnitPriceCents)

	// Ровно одно событие created в той же транзакции
	assert.Equal(t, 1, eventRepo.countByAction(orderID, models.ActionCreated))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_GroupChannel(t *testing.T) {
	svc, mock, _, groupRepo, _ := newOrderService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()

	scheduled := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	orderID, err := svc.CreateOrder(ctx, service.CreateOrderInput{
		Channel:       models.ChannelGroup,
		PaymentMethod: "pix",
		Items: []service.OrderItemInput{
			{TicketType: models.TicketHalf, Qty: 30, DiscountReason: strPtr("school group")},
		},
		Group: &service.GroupVisitInput{
			VisitType:       models.VisitScheduled,
			HasLetter:       true,
			InstitutionName: "Escola Estadual",
			ResponsibleName: "Ana",
			TotalStudents:   30,
			TotalTeachers:   3,
			ScheduledDate:   &scheduled,
		},
	}, 3, nil)
	assert.NoError(t, err)

	group, ok := groupRepo.groups[orderID]
	assert.True(t, ok, "group visit should be stored with the order")
	assert.Equal(t, "Escola Estadual", group.InstitutionName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, _, _, _, eventRepo := newOrderService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   service.CreateOrderInput
	}{
		{
			name: "zero quantity",
			in: service.CreateOrderInput{
				Channel:       models.ChannelCounter,
				PaymentMethod: "pix",
				Items:         []service.OrderItemInput{{TicketType: models.TicketFull, Qty: 0}},
			},
		},
		{
			name: "unknown ticket type",
			in: service.CreateOrderInput{
				Channel:       models.ChannelCounter,
				PaymentMethod: "pix",
				Items:         []service.OrderItemInput{{TicketType: "vip", Qty: 1}},
			},
		},
		{
			name: "half without reason",
			in: service.CreateOrderInput{
				Channel:       models.ChannelCounter,
				PaymentMethod: "pix",
				Items:         []service.OrderItemInput{{TicketType: models.TicketHalf, Qty: 1}},
			},
		},
		{
			name: "unknown channel",
			in: service.CreateOrderInput{
				Channel:       "phone",
				PaymentMethod: "pix",
				Items:         []service.OrderItemInput{{TicketType: models.TicketFull, Qty: 1}},
			},
		},
		{
			name: "empty payment method",
			in: service.CreateOrderInput{
				Channel: models.ChannelCounter,
				Items:   []service.OrderItemInput{{TicketType: models.TicketFull, Qty: 1}},
			},
		},
		{
			name: "group channel without group data",
			in: service.CreateOrderInput{
				Channel:       models.ChannelGroup,
				PaymentMethod: "pix",
				Items:         []service.OrderItemInput{{TicketType: models.TicketFull, Qty: 1}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tt.in, 3, nil)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}

	// Отклонённые заказы не оставляют следов в журнале
	assert.Empty(t, eventRepo.events)
}

func TestSoftDeleteOrder_SecondDeleteRefused(t *testing.T) {
	svc, mock, _, _, eventRepo := newOrderService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	orderID, err := svc.CreateOrder(ctx, service.CreateOrderInput{
		Channel:       models.ChannelCounter,
		PaymentMethod: "pix",
		Items:         []service.OrderItemInput{{TicketType: models.TicketFull, Qty: 1}},
	}, 3, nil)
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	err = svc.SoftDeleteOrder(ctx, orderID, 3, "customer gave up", nil)
	assert.NoError(t, err)

	// Повторное удаление откатывается и не пишет второе событие
	mock.ExpectBegin()
	mock.ExpectRollback()
	err = svc.SoftDeleteOrder(ctx, orderID, 3, "again", nil)
	assert.ErrorIs(t, err, storage.ErrOrderAlreadyDeleted)

	assert.Equal(t, 1, eventRepo.countByAction(orderID, models.ActionDeleted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteOrder_NotFound(t *testing.T) {
	svc, mock, _, _, _ := newOrderService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.SoftDeleteOrder(ctx, 404, 3, "typo", nil)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceOrderItems_Success(t *testing.T) {
	svc, mock, orderRepo, _, eventRepo := newOrderService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	orderID, err := svc.CreateOrder(ctx, service.CreateOrderInput{
		Channel:       models.ChannelCounter,
		PaymentMethod: "pix",
		Items:         []service.OrderItemInput{{TicketType: models.TicketFull, Qty: 2}},
	}, 3, nil)
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	err = svc.ReplaceOrderItems(ctx, orderID,
		[]service.OrderItemInput{{TicketType: models.TicketHalf, Qty: 1, DiscountReason: strPtr("student")}},
		service.HeaderUpdate{Note: strPtr("corrected at the desk")},
		4, "wrong ticket type", nil)
	assert.NoError(t, err)

	// Набор позиций заменён целиком
	items := orderRepo.items[orderID]
	assert.Len(t, items, 1)
	assert.Equal(t, models.TicketHalf, items[0].TicketType)
	assert.Equal(t, int64(500), items[0].UnitPriceCents)

	assert.Equal(t, 1, eventRepo.countByAction(orderID, models.ActionUpdated))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceOrderItems_DeletedOrder(t *testing.T) {
	svc, mock, _, _, _ := newOrderService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	orderID, err := svc.CreateOrder(ctx, service.CreateOrderInput{
		Channel:       models.ChannelCounter,
		PaymentMethod: "pix",
		Items:         []service.OrderItemInput{{TicketType: models.TicketFull, Qty: 1}},
	}, 3, nil)
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	err = svc.SoftDeleteOrder(ctx, orderID, 3, "cancelled", nil)
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = svc.ReplaceOrderItems(ctx, orderID,
		[]service.OrderItemInput{{TicketType: models.TicketFull, Qty: 1}},
		service.HeaderUpdate{}, 3, "late fix", nil)
	assert.ErrorIs(t, err, storage.ErrOrderAlreadyDeleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateDaily_ClassifiesBuckets(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	ledgerRepo := &fakeLedgerRepo{groups: []storage.ItemGroup{
		{Day: day, TicketType: models.TicketFull, PaymentMethod: "dinheiro", Qty: 2, RevenueCents: 2000},
		{Day: day, TicketType: models.TicketHalf, PaymentMethod: "pix", DiscountReason: "student", Qty: 1, RevenueCents: 500},
		{Day: day, TicketType: models.TicketFree, PaymentMethod: "pix", DiscountReason: "child", Qty: 1, RevenueCents: 0},
	}}
	svc := service.NewReportService(testLogger(), ledgerRepo)

	rows, err := svc.AggregateDaily(context.Background(), day, day)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)

	row := rows[0]
	// dinheiro — наличные, мотив child не входит в известные категории бесплатных
	assert.Equal(t, 2, row.Full.Cash)
	assert.Equal(t, 1, row.Half.Pix)
	assert.Equal(t, 1, row.Free.Other)
	assert.Equal(t, 0, row.Free.DayFree)
	assert.Equal(t, 3, row.PayingAttendees)
	assert.Equal(t, 4, row.TotalAttendees)
	assert.Equal(t, int64(2000), row.Revenue.CashCents)
	assert.Equal(t, int64(500), row.Revenue.PixCents)
	assert.Equal(t, int64(0), row.Revenue.CardCents)
}

func TestAggregateDaily_UnknownPaymentGoesToCard(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	ledgerRepo := &fakeLedgerRepo{groups: []storage.ItemGroup{
		{Day: day, TicketType: models.TicketFull, PaymentMethod: "cheque", Qty: 1, RevenueCents: 1000},
	}}
	svc := service.NewReportService(testLogger(), ledgerRepo)

	rows, err := svc.AggregateDaily(context.Background(), day, day)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Full.Card)
	assert.Equal(t, int64(1000), rows[0].Revenue.CardCents)
}

func TestAggregateDaily_Deterministic(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	ledgerRepo := &fakeLedgerRepo{groups: []storage.ItemGroup{
		{Day: day, TicketType: models.TicketFull, PaymentMethod: "dinheiro", Qty: 2, RevenueCents: 2000},
		{Day: day.AddDate(0, 0, 1), TicketType: models.TicketHalf, PaymentMethod: "pix", DiscountReason: "student", Qty: 3, RevenueCents: 1500},
	}}
	svc := service.NewReportService(testLogger(), ledgerRepo)
	ctx := context.Background()

	first, err := svc.AggregateDaily(ctx, day, day.AddDate(0, 0, 1))
	assert.NoError(t, err)
	second, err := svc.AggregateDaily(ctx, day, day.AddDate(0, 0, 1))
	assert.NoError(t, err)
	assert.Equal(t, first, second, "repeated aggregation over unchanged data must match exactly")
}

func TestAggregateDaily_InvalidRange(t *testing.T) {
	svc := service.NewReportService(testLogger(), &fakeLedgerRepo{})
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	_, err := svc.AggregateDaily(context.Background(), day, day.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestAggregateByState_GroupsByState(t *testing.T) {
	ledgerRepo := &fakeLedgerRepo{stateGroups: []storage.StateGroup{
		// пустой штат идёт первым: COALESCE даёт '' для заказов без UF
		{State: "", TicketType: models.TicketFull, Qty: 1, RevenueCents: 1000},
		{State: "MG", TicketType: models.TicketFree, Qty: 2, RevenueCents: 0},
		{State: "SP", TicketType: models.TicketFull, Qty: 3, RevenueCents: 3000},
		{State: "SP", TicketType: models.TicketHalf, Qty: 2, RevenueCents: 1000},
	}}
	svc := service.NewReportService(testLogger(), ledgerRepo)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	rows, err := svc.AggregateByState(context.Background(), day, day)
	assert.NoError(t, err)
	assert.Len(t, rows, 3)

	assert.Equal(t, "", rows[0].State)
	assert.Equal(t, 1, rows[0].FullQty)
	assert.Equal(t, int64(1000), rows[0].RevenueCents)

	assert.Equal(t, "MG", rows[1].State)
	assert.Equal(t, 2, rows[1].FreeQty)
	assert.Equal(t, 0, rows[1].PayingAttendees)
	assert.Equal(t, 2, rows[1].TotalAttendees)
	assert.Equal(t, int64(0), rows[1].RevenueCents)
	assert.Equal(t, "0.00", rows[1].Revenue)

	assert.Equal(t, "SP", rows[2].State)
	assert.Equal(t, 3, rows[2].FullQty)
	assert.Equal(t, 2, rows[2].HalfQty)
	assert.Equal(t, 5, rows[2].PayingAttendees)
	assert.Equal(t, 5, rows[2].TotalAttendees)
	assert.Equal(t, int64(4000), rows[2].RevenueCents)
	assert.Equal(t, "40.00", rows[2].Revenue)
}

func TestAggregateByState_InvalidRange(t *testing.T) {
	svc := service.NewReportService(testLogger(), &fakeLedgerRepo{})
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	_, err := svc.AggregateByState(context.Background(), day, day.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestBuildLedger_FillsGapDays(t *testing.T) {
	from := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2)
	ledgerRepo := &fakeLedgerRepo{groups: []storage.ItemGroup{
		{Day: from, TicketType: models.TicketFull, PaymentMethod: "dinheiro", Qty: 2, RevenueCents: 2000},
	}}
	svc := service.NewReportService(testLogger(), ledgerRepo)

	report, err := svc.BuildLedger(context.Background(), from, to, testPrices)
	assert.NoError(t, err)

	// Три календарных дня: один с продажами, два нулевых
	assert.Len(t, report.Rows, 3)
	assert.Equal(t, "2024-03-15", report.Rows[0].Date)
	assert.Equal(t, 2, report.Rows[0].FullCash)
	assert.Equal(t, "20.00", report.Rows[0].RevenueCash)
	assert.Equal(t, 0, report.Rows[1].TotalAttendees)
	assert.Equal(t, "0.00", report.Rows[1].RevenueTotal)

	assert.Equal(t, "TOTAL", report.Total.Date)
	assert.Equal(t, 2, report.Total.FullCash)
	assert.Equal(t, int64(2000), report.Total.RevenueTotalCents)
	assert.Equal(t, "20.00", report.Total.RevenueTotal)
	assert.Equal(t, "10.00", report.FullPrice)
	assert.Equal(t, "5.00", report.HalfPrice)
}

func TestAuditService_History_DeletedOrderVisible(t *testing.T) {
	svc, mock, orderRepo, _, eventRepo := newOrderService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	orderID, err := svc.CreateOrder(ctx, service.CreateOrderInput{
		Channel:       models.ChannelCounter,
		PaymentMethod: "pix",
		Items:         []service.OrderItemInput{{TicketType: models.TicketFull, Qty: 1}},
	}, 3, nil)
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	err = svc.SoftDeleteOrder(ctx, orderID, 3, "cancelled", nil)
	assert.NoError(t, err)

	auditSvc := service.NewAuditService(testLogger(), orderRepo, eventRepo)
	events, err := auditSvc.History(ctx, orderID)
	assert.NoError(t, err, "history must stay readable after soft delete")
	assert.Len(t, events, 2)
	assert.Equal(t, models.ActionCreated, events[0].Action)
	assert.Equal(t, models.ActionDeleted, events[1].Action)
}

func TestAuditService_CheckOrderEvents(t *testing.T) {
	svc, mock, orderRepo, _, eventRepo := newOrderService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	orderID, err := svc.CreateOrder(ctx, service.CreateOrderInput{
		Channel:       models.ChannelCounter,
		PaymentMethod: "pix",
		Items:         []service.OrderItemInput{{TicketType: models.TicketFull, Qty: 1}},
	}, 3, nil)
	assert.NoError(t, err)

	auditSvc := service.NewAuditService(testLogger(), orderRepo, eventRepo)
	assert.NoError(t, auditSvc.CheckOrderEvents(ctx, orderID))

	// Рукотворная рассогласованность: событие deleted без deleted_at в шапке
	reason := "oops"
	err = eventRepo.CreateEventTx(ctx, nil, &models.OrderEvent{
		OrderID: orderID,
		Action:  models.ActionDeleted,
		UserID:  3,
		Reason:  &reason,
	})
	assert.NoError(t, err)
	assert.Error(t, auditSvc.CheckOrderEvents(ctx, orderID))
}

func TestUserService_Provision(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	svc := service.NewUserService(testLogger(), fakeRepo)
	ctx := context.Background()

	user, err := svc.Provision(ctx, "carlos", "longenough", models.RoleManager)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)
	assert.True(t, user.IsActive)

	// Хэш проверяем bcrypt-ом, а не сравнением байтов
	assert.NoError(t, bcrypt.CompareHashAndPassword(user.PassHash, []byte("longenough")))
}

func TestUserService_Provision_Validation(t *testing.T) {
	svc := service.NewUserService(testLogger(), newFakeUserRepo())
	ctx := context.Background()

	_, err := svc.Provision(ctx, "", "longenough", models.RoleClerk)
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = svc.Provision(ctx, "ana", "short", models.RoleClerk)
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = svc.Provision(ctx, "ana", "longenough", "director")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestUserService_Deactivate(t *testing.T) {
	fakeRepo := newFakeUserRepo()
	svc := service.NewUserService(testLogger(), fakeRepo)
	ctx := context.Background()

	user, err := svc.Provision(ctx, "carlos", "longenough", models.RoleClerk)
	assert.NoError(t, err)

	assert.NoError(t, svc.Deactivate(ctx, user.ID))
	stored, err := fakeRepo.GetUserByID(ctx, user.ID)
	assert.NoError(t, err)
	assert.False(t, stored.IsActive)

	assert.ErrorIs(t, svc.Deactivate(ctx, 999), storage.ErrUserNotFound)
}
