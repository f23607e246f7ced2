package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/shopspring/decimal"
)

func (c *Console) printBasket(b *models.Basket) {
	if b.Empty() {
		fmt.Fprintln(c.out, "basket is empty")
		return
	}
	for _, li := range b.Items {
		fmt.Fprintf(c.out, "  %-12s %-20s %3d x %s\n", li.ProductID, li.Name, li.Quantity, models.Cents(li.UnitPrice))
	}
	if b.CustomerRef != "" {
		fmt.Fprintf(c.out, "  customer %s\n", b.CustomerRef)
	}
	if !b.Discount.IsZero() {
		fmt.Fprintf(c.out, "  discount %s -%s\n", b.DiscountCode, models.Cents(b.Discount))
	}
	if b.Note != "" {
		fmt.Fprintf(c.out, "  note: %s\n", b.Note)
	}
	fmt.Fprintf(c.out, "  total %s\n", models.Cents(b.Total()))
}

func (c *Console) showBasket(ctx context.Context) error {
	b, err := c.ops().GetBasket(ctx, c.session)
	if err != nil {
		return err
	}
	c.printBasket(b)
	return nil
}

func (c *Console) addItem(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return usage("add <product> <qty> <price> [tax-rate] [name]")
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad quantity %q", args[1])
	}
	price, err := parseAmount(args[2])
	if err != nil {
		return err
	}
	li := models.LineItem{ProductID: args[0], Quantity: qty, UnitPrice: price, TaxRate: decimal.Zero}
	rest := args[3:]
	if len(rest) > 0 {
		if rate, err := decimal.NewFromString(rest[0]); err == nil {
			li.TaxRate = rate
			rest = rest[1:]
		}
	}
	li.Name = strings.Join(rest, " ")

	b, err := c.ops().AddItem(ctx, c.session, li)
	if err != nil {
		return err
	}
	c.printBasket(b)
	return nil
}

func (c *Console) updateQuantity(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("qty <product> <qty>")
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad quantity %q", args[1])
	}
	b, err := c.ops().UpdateQuantity(ctx, c.session, args[0], qty)
	if err != nil {
		return err
	}
	c.printBasket(b)
	return nil
}

func (c *Console) removeItem(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("remove <product>")
	}
	b, err := c.ops().RemoveItem(ctx, c.session, args[0])
	if err != nil {
		return err
	}
	c.printBasket(b)
	return nil
}

func (c *Console) setCustomer(ctx context.Context, args []string) error {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	_, err := c.ops().SetCustomer(ctx, c.session, ref)
	return err
}

func (c *Console) applyDiscount(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("discount <code> <amount>")
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	b, err := c.ops().ApplyDiscount(ctx, c.session, args[0], amount)
	if err != nil {
		return err
	}
	c.printBasket(b)
	return nil
}

func (c *Console) setNote(ctx context.Context, args []string) error {
	_, err := c.ops().SetNote(ctx, c.session, strings.Join(args, " "))
	return err
}

func (c *Console) clearBasket(ctx context.Context) error {
	if err := c.ops().ClearBasket(ctx, c.session); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "basket cleared")
	return nil
}
