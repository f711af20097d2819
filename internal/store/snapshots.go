package store

import (
	"context"
	"fmt"
	"time"

	"demand-forecast-service/internal/models"
)

// The engine reads batch snapshots of the upstream warehouse tables; it
// never writes to them.

type orderRow struct {
	ID      int64  `db:"id"`
	Created int64  `db:"created"`
	PlaceID int64  `db:"place_id"`
	Status  string `db:"status"`
	Type    string `db:"type"`
	Channel string `db:"channel"`
}

// LoadOrders retrieves the raw orders snapshot. Creation times are stored as
// unix timestamps upstream.
func (s *Store) LoadOrders(ctx context.Context) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, created, place_id, COALESCE(status, '') AS status,
		        COALESCE(type, '') AS type, COALESCE(channel, '') AS channel
		 FROM fct_orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading orders snapshot: %w", err)
	}

	orders := make([]models.Order, len(rows))
	for i, r := range rows {
		orders[i] = models.Order{
			ID:      r.ID,
			Created: time.Unix(r.Created, 0).UTC(),
			PlaceID: r.PlaceID,
			Status:  r.Status,
			Type:    r.Type,
			Channel: r.Channel,
		}
	}
	return orders, nil
}

// LoadOrderItems retrieves the raw order line items snapshot.
func (s *Store) LoadOrderItems(ctx context.Context) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		`SELECT id, order_id, item_id, quantity, COALESCE(price, 0) AS price
		 FROM fct_order_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading order items snapshot: %w", err)
	}
	return items, nil
}

// LoadItems retrieves the item catalog dimension.
func (s *Store) LoadItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := s.db.SelectContext(ctx, &items,
		`SELECT id, COALESCE(name, '') AS name, COALESCE(price, 0) AS price
		 FROM dim_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading items snapshot: %w", err)
	}
	return items, nil
}

// LoadMenuItems retrieves the menu catalog dimension.
func (s *Store) LoadMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := s.db.SelectContext(ctx, &items,
		`SELECT id, COALESCE(price, 0) AS price, COALESCE(status, 0) AS status,
		        COALESCE(purchases, 0) AS purchases
		 FROM dim_menu_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading menu items snapshot: %w", err)
	}
	return items, nil
}

// LoadTrainingSnapshot loads all four inputs of one training run, stamped
// with the as-of cutoff used for future-date validation.
func (s *Store) LoadTrainingSnapshot(ctx context.Context) (*models.TrainingSnapshot, error) {
	orders, err := s.LoadOrders(ctx)
	if err != nil {
		return nil, err
	}
	orderItems, err := s.LoadOrderItems(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.LoadItems(ctx)
	if err != nil {
		return nil, err
	}
	menuItems, err := s.LoadMenuItems(ctx)
	if err != nil {
		return nil, err
	}

	return &models.TrainingSnapshot{
		Orders:     orders,
		OrderItems: orderItems,
		Items:      items,
		MenuItems:  menuItems,
		AsOf:       time.Now().UTC(),
	}, nil
}
