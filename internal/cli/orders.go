package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/checkout"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/shopspring/decimal"
)

func (c *Console) printOrder(o *models.Order) {
	fmt.Fprintf(c.out, "%s  %-18s %10s  %s", o.ID, o.Status, models.Cents(o.Total()), o.CreatedAt.Local().Format("2006-01-02 15:04"))
	if o.Sync.RetryCount > 0 || o.Sync.LastError != "" {
		fmt.Fprintf(c.out, "  retries=%d %s %s", o.Sync.RetryCount, o.Sync.ErrorKind, o.Sync.LastError)
	}
	fmt.Fprintln(c.out)
}

// tenderArgs reads "<method> [tendered]" from args[from:].
func tenderArgs(args []string, from int) (string, decimal.Decimal, error) {
	method := args[from]
	tendered := decimal.Zero
	if len(args) > from+1 {
		d, err := parseAmount(args[from+1])
		if err != nil {
			return "", decimal.Zero, err
		}
		tendered = d
	}
	return method, tendered, nil
}

func (c *Console) printOutcome(out *checkout.Outcome) error {
	c.printOrder(out.Order)
	if !out.Paid {
		return out.Err()
	}
	if out.Change.IsPositive() {
		fmt.Fprintf(c.out, "change %s\n", models.Cents(out.Change))
	}
	return nil
}

func (c *Console) checkout(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("checkout <method> [tendered]")
	}
	method, tendered, err := tenderArgs(args, 0)
	if err != nil {
		return err
	}
	out, err := c.ops().Checkout(ctx, c.session, method, tendered)
	if err != nil {
		return err
	}
	return c.printOutcome(out)
}

func (c *Console) retryPayment(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("retry <order> <method> [tendered]")
	}
	method, tendered, err := tenderArgs(args, 1)
	if err != nil {
		return err
	}
	out, err := c.ops().RetryPayment(ctx, args[0], method, tendered)
	if err != nil {
		return err
	}
	return c.printOutcome(out)
}

func (c *Console) cancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("cancel <order>")
	}
	o, err := c.ops().CancelOrder(ctx, args[0])
	if err != nil {
		return err
	}
	c.printOrder(o)
	return nil
}

func (c *Console) showOrder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("order <id>")
	}
	o, err := c.ops().GetOrder(ctx, args[0])
	if err != nil {
		return err
	}
	c.printOrder(o)
	for _, li := range o.Items {
		fmt.Fprintf(c.out, "  %-12s %3d x %s\n", li.ProductID, li.Quantity, models.Cents(li.UnitPrice))
	}
	return nil
}

func (c *Console) findOrders(ctx context.Context, args []string) error {
	var dayArg, userID string
	if len(args) > 0 {
		dayArg = args[0]
	}
	if len(args) > 1 {
		userID = args[1]
	}
	day, err := parseDay(dayArg, c.now())
	if err != nil {
		return err
	}
	orders, err := c.ops().FindOrders(ctx, day, day.Add(24*time.Hour), userID)
	if err != nil {
		return err
	}
	for _, o := range orders {
		c.printOrder(o)
	}
	fmt.Fprintf(c.out, "%d orders\n", len(orders))
	return nil
}

// sync with no argument is sync-all.
func (c *Console) sync(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.syncAll(ctx)
	}
	res, err := c.ops().SyncOne(ctx, args[0])
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}
	fmt.Fprintf(c.out, "%s synced as %s\n", res.OrderID, res.RemoteID)
	return nil
}

func (c *Console) syncAll(ctx context.Context) error {
	sum, err := c.ops().SyncAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "synced %d, failed %d\n", sum.Synced, sum.Failed)
	for _, e := range sum.Errors {
		fmt.Fprintf(c.out, "  %s %s %s\n", e.OrderID, e.Kind, e.Message)
	}
	return nil
}

func (c *Console) resetRetries(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("reset <order>")
	}
	o, err := c.ops().ResetRetries(ctx, args[0])
	if err != nil {
		return err
	}
	c.printOrder(o)
	return nil
}

func (c *Console) pending(ctx context.Context) error {
	n, err := c.ops().PendingCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d orders waiting to sync\n", n)
	return nil
}

func (c *Console) failures(ctx context.Context) error {
	orders, err := c.ops().Failures(ctx)
	if err != nil {
		return err
	}
	for _, o := range orders {
		c.printOrder(o)
	}
	fmt.Fprintf(c.out, "%d failed orders\n", len(orders))
	return nil
}
