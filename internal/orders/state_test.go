package orders

import (
	"testing"

	"colony-exchange/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// placeBuyOrder puts a standard 5-unit purchase on the books and returns
// the Placed order.
func placeBuyOrder(t *testing.T, env *testEnv) *models.Order {
	t.Helper()
	item := env.addItem(t, "Steel", 10, 1, 20)
	env.setBalance(t, 1000)

	wtb := []models.OrderItem{{ItemCode: env.token(item), Quantity: 5, Health: 100}}
	result, err := env.engine.Place(env.colony, nil, wtb, env.promise.PromiseID, models.CurrencyUTC, 0, env.colony.Tick)
	require.NoError(t, err)
	require.Equal(t, models.ResultAcceptedAll, result.Result)
	require.Equal(t, models.OrderPlaced, result.Order.Status)
	return result.Order
}

func TestUpdateStatusDeliveryWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	order := placeBuyOrder(t, env)
	windowOpen := order.EndTick - 6*OneHourTicks

	// Too early: the window has not opened.
	_, err := env.engine.UpdateStatus(env.colony, order.OrderID, models.OrderOutForDelivery, windowOpen)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	summary, err := env.engine.UpdateStatus(env.colony, order.OrderID, models.OrderOutForDelivery, windowOpen+1)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOutForDelivery, summary.Status)

	// The colony's reported tick was persisted alongside.
	var colony models.Colony
	require.NoError(t, env.db.First(&colony, "colony_id = ?", env.colony.ColonyID).Error)
	assert.Equal(t, windowOpen+1, colony.Tick)
}

func TestUpdateStatusFullDeliveryPath(t *testing.T) {
	env := newTestEnv(t, nil)
	order := placeBuyOrder(t, env)
	tick := order.EndTick

	_, err := env.engine.UpdateStatus(env.colony, order.OrderID, models.OrderOutForDelivery, tick)
	require.NoError(t, err)
	summary, err := env.engine.UpdateStatus(env.colony, order.OrderID, models.OrderDelivered, tick)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, summary.Status)

	// Delivered is terminal for client requests.
	_, err = env.engine.UpdateStatus(env.colony, order.OrderID, models.OrderOutForDelivery, tick)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatusFailedDelivery(t *testing.T) {
	env := newTestEnv(t, nil)
	order := placeBuyOrder(t, env)
	tick := order.EndTick

	_, err := env.engine.UpdateStatus(env.colony, order.OrderID, models.OrderOutForDelivery, tick)
	require.NoError(t, err)
	summary, err := env.engine.UpdateStatus(env.colony, order.OrderID, models.OrderFailed, tick)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFailed, summary.Status)
}

func TestUpdateStatusInvalidTransitions(t *testing.T) {
	env := newTestEnv(t, nil)
	order := placeBuyOrder(t, env)
	tick := order.EndTick

	// Placed can only move toward delivery.
	for _, requested := range []models.OrderStatus{models.OrderDelivered, models.OrderFailed, models.OrderReversed, models.OrderPlaced} {
		_, err := env.engine.UpdateStatus(env.colony, order.OrderID, requested, tick)
		assert.ErrorIs(t, err, ErrInvalidTransition, "requested %s", requested)
	}
}

func TestUpdateStatusStaleTick(t *testing.T) {
	env := newTestEnv(t, nil)
	order := placeBuyOrder(t, env)

	_, err := env.engine.UpdateStatus(env.colony, order.OrderID, models.OrderOutForDelivery, env.colony.Tick-1)
	assert.ErrorIs(t, err, ErrStaleTick)
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.engine.UpdateStatus(env.colony, "no-such-order", models.OrderOutForDelivery, env.colony.Tick)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndManifest(t *testing.T) {
	env := newTestEnv(t, nil)
	order := placeBuyOrder(t, env)

	summaries, err := env.engine.List(env.colony.ColonyID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, order.OrderID, summaries[0].OrderID)

	items, err := env.engine.Manifest(env.colony.ColonyID, order.OrderID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Steel", items[0].ThingDef)
	assert.Equal(t, int32(5), items[0].Quantity)

	// Another colony cannot read it.
	_, err = env.engine.Manifest("colony-2", order.OrderID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTimewarpReversesOrders(t *testing.T) {
	env := newTestEnv(t, nil)
	item := env.addItem(t, "Steel", 10, 1, 0)
	env.setBalance(t, 100)

	wts := []models.OrderItem{{ItemCode: env.token(item), Quantity: 3, Health: 100}}
	result, err := env.engine.Place(env.colony, wts, nil, env.promise.PromiseID, models.CurrencyUTC, 0, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(130), result.Balance)
	require.Equal(t, int32(3), env.stock(t, item.ItemCode))

	// The save was reloaded to before the trade ever happened.
	require.NoError(t, env.engine.Timewarp(env.colony, 500))

	var order models.Order
	require.NoError(t, env.db.First(&order, "order_id = ?", result.Order.OrderID).Error)
	assert.Equal(t, models.OrderReversed, order.Status)
	assert.Equal(t, int64(100), env.balance(t))
	assert.Equal(t, int32(0), env.stock(t, item.ItemCode))
}

func TestTimewarpKeepsEarlierOrders(t *testing.T) {
	env := newTestEnv(t, nil)
	item := env.addItem(t, "Steel", 10, 1, 0)
	env.setBalance(t, 100)

	wts := []models.OrderItem{{ItemCode: env.token(item), Quantity: 3, Health: 100}}
	result, err := env.engine.Place(env.colony, wts, nil, env.promise.PromiseID, models.CurrencyUTC, 0, 1000)
	require.NoError(t, err)

	// Orders placed strictly before the rewind point are left alone.
	require.NoError(t, env.engine.Timewarp(env.colony, 1001))

	var order models.Order
	require.NoError(t, env.db.First(&order, "order_id = ?", result.Order.OrderID).Error)
	assert.Equal(t, models.OrderDelivered, order.Status)
	assert.Equal(t, int64(130), env.balance(t))
}

func TestTimewarpFloorsBalanceAtZero(t *testing.T) {
	env := newTestEnv(t, nil)
	item := env.addItem(t, "Steel", 10, 1, 0)
	env.setBalance(t, 100)

	wts := []models.OrderItem{{ItemCode: env.token(item), Quantity: 3, Health: 100}}
	_, err := env.engine.Place(env.colony, wts, nil, env.promise.PromiseID, models.CurrencyUTC, 0, 1000)
	require.NoError(t, err)

	// The colony spent its windfall before the rollback.
	require.NoError(t, env.db.Model(&models.BankBalance{}).
		Where("colony_id = ?", env.colony.ColonyID).
		Update("balance", 10).Error)

	require.NoError(t, env.engine.Timewarp(env.colony, 500))
	assert.Equal(t, int64(0), env.balance(t))
}

func TestUpdateTradeStats(t *testing.T) {
	env := newTestEnv(t, nil)
	steel := env.addItem(t, "Steel", 10, 1, 20)
	cloth := env.addItem(t, "Cloth", 5, 1, 0)
	env.setBalance(t, 1000)

	wts := []models.OrderItem{{ItemCode: env.token(cloth), Quantity: 4, Health: 100}}
	wtb := []models.OrderItem{{ItemCode: env.token(steel), Quantity: 5, Health: 100}}
	result, err := env.engine.Place(env.colony, wts, wtb, env.promise.PromiseID, models.CurrencyUTC, 0, 1000)
	require.NoError(t, err)

	require.NoError(t, UpdateTradeStats(env.db, result.Order.OrderID))
	require.NoError(t, UpdateTradeStats(env.db, result.Order.OrderID))

	var bought, sold models.TradeStatistic
	require.NoError(t, env.db.First(&bought, "item_code = ? AND buy = ?", steel.ItemCode, true).Error)
	require.NoError(t, env.db.First(&sold, "item_code = ? AND buy = ?", cloth.ItemCode, false).Error)
	assert.Equal(t, int64(10), bought.Quantity)
	assert.Equal(t, int64(8), sold.Quantity)
}
