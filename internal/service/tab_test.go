package service

import (
	"context"
	"testing"

	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hundredTab opens a tab on a fresh table with a 100.00 subtotal.
func hundredTab(t *testing.T, fl *floor, number int32) (tableID, tabID uuid.UUID) {
	t.Helper()
	item := fl.db.addMenuItem("Tasting menu", "50.00", true)
	table := fl.db.addTable(number)
	tab := fl.openTab(t, table.ID)
	fl.order(t, tab.ID, item, 2)
	return table.ID, tab.ID
}

func TestOpenTableTabOccupiesTable(t *testing.T) {
	fl := newFloor()
	ctx := context.Background()
	waiter := fl.db.addUser(enum.UserRoleWaiter)
	table := fl.db.addTable(1)

	tab, err := fl.tabs.Open(ctx, OpenTabRequest{TableID: table.ID, PersonName: "Bruno", OpenedBy: waiter.ID})
	require.NoError(t, err)
	assert.Equal(t, enum.TabTypeTable, tab.Type)
	assert.Equal(t, enum.TabStatusOpen, tab.Status)
	assert.True(t, tab.CustomerSeatedAt.Valid)
	assert.False(t, tab.ServiceChargeIncluded)
	assert.False(t, tab.ServiceChargePaidSeparately)

	got := fl.db.tables[table.ID]
	assert.Equal(t, enum.TableStatusOccupied, got.Status)
	assert.True(t, got.OccupiedSince.Valid)
	assert.Equal(t, "Bruno", fl.db.parties[tab.ID].PersonName)
	assert.Equal(t, []string{events.TabOpened, events.TableUpdated}, fl.events.types())
}

func TestOpenCounterTab(t *testing.T) {
	fl := newFloor()
	fl.tabs = NewTabService(fl.deps, TabConfig{TableServiceChargeDefault: true})

	tab := fl.openTab(t, uuid.Nil)
	assert.Equal(t, enum.TabTypeCounter, tab.Type)
	assert.False(t, tab.TableID.Valid)
	assert.False(t, tab.ServiceChargeIncluded, "counter sales never default to a service charge")
	assert.False(t, tab.CustomerSeatedAt.Valid)
	assert.Empty(t, fl.db.parties)
}

func TestOpenOnMissingTable(t *testing.T) {
	fl := newFloor()
	_, err := fl.tabs.Open(context.Background(), OpenTabRequest{TableID: uuid.New()})
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Empty(t, fl.db.tabs)
}

func TestCloseWithServiceCharge(t *testing.T) {
	tests := []struct {
		name           string
		included       bool
		paidSeparately bool
		wantCharge     string
		wantFinal      string
	}{
		{"included", true, false, "10.00", "110.00"},
		{"paid separately", true, true, "10.00", "100.00"},
		{"declined", false, false, "0.00", "100.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl := newFloor()
			_, tabID := hundredTab(t, fl, 1)

			tab, err := fl.tabs.Close(context.Background(), CloseTabRequest{
				TabID:                       tabID,
				PaymentMethod:               enum.PaymentMethodCreditCard,
				PaidAmount:                  dec(tt.wantFinal),
				ServiceChargeIncluded:       ptr(tt.included),
				ServiceChargePaidSeparately: tt.paidSeparately,
			})
			require.NoError(t, err)
			assert.Equal(t, enum.TabStatusClosed, tab.Status)
			assertMoney(t, "100.00", tab.Total)
			assertMoney(t, tt.wantCharge, tab.ServiceCharge)
			assertMoney(t, tt.wantFinal, tab.FinalTotal)
			assert.True(t, tab.PaidAt.Valid)
			assert.True(t, tab.ClosedAt.Valid)
		})
	}
}

func TestCloseComputesChange(t *testing.T) {
	tests := []struct {
		method     string
		wantChange string
	}{
		{enum.PaymentMethodCash, "40.00"},
		{enum.PaymentMethodPix, "0.00"},
		{enum.PaymentMethodDebitCard, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			fl := newFloor()
			_, tabID := hundredTab(t, fl, 1)

			tab, err := fl.tabs.Close(context.Background(), CloseTabRequest{
				TabID:                 tabID,
				PaymentMethod:         tt.method,
				PaidAmount:            dec("150.00"),
				ServiceChargeIncluded: ptr(true),
			})
			require.NoError(t, err)
			assertMoney(t, "110.00", tab.FinalTotal)
			assertMoney(t, "150.00", tab.PaidAmount)
			assertMoney(t, tt.wantChange, tab.ChangeAmount)
			assert.Equal(t, tt.method, tab.PaymentMethod.String)
		})
	}
}

func TestCloseShortCashPaymentStillCloses(t *testing.T) {
	fl := newFloor()
	tableID, tabID := hundredTab(t, fl, 1)

	tab, err := fl.tabs.Close(context.Background(), CloseTabRequest{
		TabID:                 tabID,
		PaymentMethod:         enum.PaymentMethodCash,
		PaidAmount:            dec("100.00"),
		ServiceChargeIncluded: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, enum.TabStatusClosed, tab.Status)
	assertMoney(t, "110.00", tab.FinalTotal)
	assertMoney(t, "100.00", tab.PaidAmount)
	assertMoney(t, "0.00", tab.ChangeAmount)
	assert.Equal(t, enum.TableStatusPaidPendingRelease, fl.db.tables[tableID].Status)
}

func TestCloseKeepsTabServiceChargeWhenUnset(t *testing.T) {
	tests := []struct {
		name      string
		toggled   bool
		wantFinal string
	}{
		{"toggled on", true, "110.00"},
		{"toggled off", false, "100.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl := newFloor()
			ctx := context.Background()
			_, tabID := hundredTab(t, fl, 1)
			_, err := fl.tabs.ToggleServiceCharge(ctx, tabID, tt.toggled)
			require.NoError(t, err)

			tab, err := fl.tabs.Close(ctx, CloseTabRequest{
				TabID:         tabID,
				PaymentMethod: enum.PaymentMethodPix,
				PaidAmount:    dec(tt.wantFinal),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.toggled, tab.ServiceChargeIncluded)
			assertMoney(t, tt.wantFinal, tab.FinalTotal)
		})
	}
}

func TestCloseFailuresLeaveTabOpen(t *testing.T) {
	fl := newFloor()
	ctx := context.Background()
	tableID, tabID := hundredTab(t, fl, 1)

	tests := []struct {
		name string
		req  CloseTabRequest
		want error
	}{
		{"unknown method", CloseTabRequest{TabID: tabID, PaymentMethod: "CHEQUE", PaidAmount: dec("200")}, ErrInvalidPaymentMethod},
		{"negative amount", CloseTabRequest{TabID: tabID, PaymentMethod: enum.PaymentMethodPix, PaidAmount: dec("-1")}, ErrInvalidPaidAmount},
		{"missing tab", CloseTabRequest{TabID: uuid.New(), PaymentMethod: enum.PaymentMethodPix}, ErrTabNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fl.tabs.Close(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, enum.TabStatusOpen, fl.db.tabs[tabID].Status)
			assert.Equal(t, enum.TableStatusOccupied, fl.db.tables[tableID].Status)
		})
	}
}

func TestCloseTwiceIsInvalidState(t *testing.T) {
	fl := newFloor()
	_, tabID := hundredTab(t, fl, 1)
	fl.pay(t, tabID)

	_, err := fl.tabs.Close(context.Background(), CloseTabRequest{TabID: tabID, PaymentMethod: enum.PaymentMethodPix, PaidAmount: dec("100")})
	assert.ErrorIs(t, err, ErrTabNotOpen)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCloseRollsBackOnCommitFailure(t *testing.T) {
	fl := newFloor()
	tableID, tabID := hundredTab(t, fl, 1)
	fl.pool.commitErr = assert.AnError

	_, err := fl.tabs.Close(context.Background(), CloseTabRequest{TabID: tabID, PaymentMethod: enum.PaymentMethodPix, PaidAmount: dec("100")})
	require.Error(t, err)
	assert.Equal(t, enum.TabStatusOpen, fl.db.tabs[tabID].Status)
	assert.Equal(t, enum.TableStatusOccupied, fl.db.tables[tableID].Status)
	assert.False(t, fl.db.tables[tableID].HasPaidTab)
}

func TestCalculateIsPure(t *testing.T) {
	fl := newFloor()
	ctx := context.Background()
	_, tabID := hundredTab(t, fl, 1)
	_, err := fl.tabs.ToggleServiceCharge(ctx, tabID, true)
	require.NoError(t, err)
	begun := fl.pool.begun

	first, err := fl.tabs.Calculate(ctx, tabID)
	require.NoError(t, err)
	second, err := fl.tabs.Calculate(ctx, tabID)
	require.NoError(t, err)

	assert.Equal(t, first.Breakdown, second.Breakdown)
	assert.True(t, dec("100").Equal(first.Subtotal))
	assert.True(t, dec("10").Equal(first.ServiceCharge))
	assert.True(t, dec("110").Equal(first.FinalTotal))
	assert.Equal(t, begun, fl.pool.begun, "calculate must not open transactions")

	// Still available once the tab is closed.
	fl.pay(t, tabID)
	closed, err := fl.tabs.Calculate(ctx, tabID)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(closed.Subtotal))
}

func TestToggleServiceChargeAndRequestBill(t *testing.T) {
	fl := newFloor()
	ctx := context.Background()
	_, tabID := hundredTab(t, fl, 1)

	tab, err := fl.tabs.ToggleServiceCharge(ctx, tabID, true)
	require.NoError(t, err)
	assert.True(t, tab.ServiceChargeIncluded)

	tab, err = fl.tabs.RequestBill(ctx, tabID)
	require.NoError(t, err)
	assert.True(t, tab.BillRequestedAt.Valid)
	assert.Equal(t, enum.TabStatusOpen, tab.Status)

	fl.pay(t, tabID)
	_, err = fl.tabs.ToggleServiceCharge(ctx, tabID, false)
	assert.ErrorIs(t, err, ErrTabNotOpen)
	_, err = fl.tabs.RequestBill(ctx, tabID)
	assert.ErrorIs(t, err, ErrTabNotOpen)
	_, err = fl.tabs.RequestBill(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTabNotFound)
}

func TestDeleteCascadesAndFreesTable(t *testing.T) {
	fl := newFloor()
	ctx := context.Background()
	admin := fl.db.addUser(enum.UserRoleAdmin)
	item := fl.db.addMenuItem("Pizza", "45.00", true)
	table := fl.db.addTable(1)
	tab, err := fl.tabs.Open(ctx, OpenTabRequest{TableID: table.ID, PersonName: "Carla"})
	require.NoError(t, err)
	fl.order(t, tab.ID, item, 1)
	fl.order(t, tab.ID, item, 2)
	_, err = fl.cancels.Create(ctx, CreateCancellationRequest{TabID: tab.ID, Category: enum.CancellationTest, RequestedBy: admin.ID})
	require.NoError(t, err)

	require.NoError(t, fl.tabs.Delete(ctx, tab.ID, admin.ID))

	assert.NotContains(t, fl.db.tabs, tab.ID)
	assert.Empty(t, fl.db.orders)
	assert.Empty(t, fl.db.parties)
	assert.Empty(t, fl.db.cancellations)
	got := fl.db.tables[table.ID]
	assert.Equal(t, enum.TableStatusAvailable, got.Status)
	assert.False(t, got.OccupiedSince.Valid)

	require.Len(t, fl.db.audits, 1)
	assert.Equal(t, "delete", fl.db.audits[0].Action)
	assert.NotEmpty(t, fl.db.audits[0].BeforeData)

	assert.ErrorIs(t, fl.tabs.Delete(ctx, tab.ID, admin.ID), ErrTabNotFound)
}

func TestDeleteKeepsSiblingOccupancy(t *testing.T) {
	fl := newFloor()
	ctx := context.Background()
	table := fl.db.addTable(1)
	a := fl.openTab(t, table.ID)
	fl.openTab(t, table.ID)

	require.NoError(t, fl.tabs.Delete(ctx, a.ID, uuid.Nil))
	assert.Equal(t, enum.TableStatusOccupied, fl.db.tables[table.ID].Status)
}

func TestDeleteClosedTabLeavesTableAlone(t *testing.T) {
	fl := newFloor()
	ctx := context.Background()
	tableID, tabID := hundredTab(t, fl, 1)
	fl.pay(t, tabID)
	require.Equal(t, enum.TableStatusPaidPendingRelease, fl.db.tables[tableID].Status)

	require.NoError(t, fl.tabs.Delete(ctx, tabID, uuid.Nil))
	assert.Equal(t, enum.TableStatusPaidPendingRelease, fl.db.tables[tableID].Status)
}

func TestGetAndList(t *testing.T) {
	fl := newFloor()
	ctx := context.Background()
	item := fl.db.addMenuItem("Beer", "12.00", true)
	table := fl.db.addTable(1)
	tab, err := fl.tabs.Open(ctx, OpenTabRequest{TableID: table.ID, PersonName: "Davi"})
	require.NoError(t, err)
	fl.order(t, tab.ID, item, 2)
	counter := fl.openTab(t, uuid.Nil)
	fl.pay(t, counter.ID)

	detail, err := fl.tabs.Get(ctx, tab.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Party)
	assert.Equal(t, "Davi", detail.Party.PersonName)
	assert.Len(t, detail.Lines, 1)

	detail, err = fl.tabs.Get(ctx, counter.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Party)

	open, err := fl.tabs.List(ctx, ListTabsFilter{Status: enum.TabStatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, tab.ID, open[0].ID)

	byTable, err := fl.tabs.List(ctx, ListTabsFilter{TableID: table.ID})
	require.NoError(t, err)
	assert.Len(t, byTable, 1)

	all, err := fl.tabs.List(ctx, ListTabsFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = fl.tabs.List(ctx, ListTabsFilter{Status: "PAID"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = fl.tabs.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTabNotFound)
}
