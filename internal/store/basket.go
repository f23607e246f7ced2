package store

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/shopspring/decimal"
)

// GetBasket returns the session's basket, or a fresh empty one.
func (s *Store) GetBasket(ctx context.Context, sess models.Session) (*models.Basket, error) {
	return s.loadBasket(ctx, sess)
}

func (s *Store) AddItem(ctx context.Context, sess models.Session, li models.LineItem) (*models.Basket, error) {
	return s.mutateBasket(ctx, sess, func(b *models.Basket) error { return b.AddItem(li) })
}

func (s *Store) UpdateQuantity(ctx context.Context, sess models.Session, productID string, qty int) (*models.Basket, error) {
	return s.mutateBasket(ctx, sess, func(b *models.Basket) error { return b.UpdateQuantity(productID, qty) })
}

func (s *Store) RemoveItem(ctx context.Context, sess models.Session, productID string) (*models.Basket, error) {
	return s.mutateBasket(ctx, sess, func(b *models.Basket) error { return b.RemoveItem(productID) })
}

func (s *Store) SetCustomer(ctx context.Context, sess models.Session, customerRef string) (*models.Basket, error) {
	return s.mutateBasket(ctx, sess, func(b *models.Basket) error {
		b.CustomerRef = customerRef
		return nil
	})
}

func (s *Store) ApplyDiscount(ctx context.Context, sess models.Session, code string, amount decimal.Decimal) (*models.Basket, error) {
	return s.mutateBasket(ctx, sess, func(b *models.Basket) error { return b.ApplyDiscount(code, amount) })
}

func (s *Store) SetNote(ctx context.Context, sess models.Session, note string) (*models.Basket, error) {
	return s.mutateBasket(ctx, sess, func(b *models.Basket) error {
		b.Note = note
		return nil
	})
}

func (s *Store) ClearBasket(ctx context.Context, sess models.Session) error {
	unlock, err := s.locks.Lock(ctx, basketKey(sess.ID))
	if err != nil {
		return err
	}
	defer unlock()
	return s.repos.Baskets(s.db).Delete(ctx, sess.ID)
}

func (s *Store) mutateBasket(ctx context.Context, sess models.Session, fn func(b *models.Basket) error) (*models.Basket, error) {
	unlock, err := s.locks.Lock(ctx, basketKey(sess.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.loadBasket(ctx, sess)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	b.UpdatedAt = s.now()
	if err := s.repos.Baskets(s.db).Save(ctx, b); err != nil {
		return nil, fmt.Errorf("save basket: %w", err)
	}
	return b, nil
}
