package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lanpos/internal/models"
)

var errNoArchive = errors.New("report archive is not configured")

func (c *Console) setCashier(args []string) error {
	if len(args) < 1 {
		return usage("cashier <id> [name]")
	}
	c.session.UserID = args[0]
	c.session.UserName = strings.Join(args[1:], " ")
	fmt.Fprintf(c.out, "cashier %s\n", c.session.UserID)
	return nil
}

func (c *Console) printShift(s *models.Shift) {
	state := "open"
	if !s.IsOpen() {
		state = "closed " + s.ClosedAt.Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintf(c.out, "shift %s by %s since %s (%s), opening cash %s\n",
		s.ID, s.OpenedBy, s.OpenedAt.Local().Format("2006-01-02 15:04"), state, models.Cents(s.OpeningCash))
}

func (c *Console) printReport(r models.DailyReport) {
	fmt.Fprintf(c.out, "%s .. %s\n", r.From.Local().Format("2006-01-02 15:04"), r.To.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(c.out, "  orders %d, cancelled %d\n", r.OrderCount, r.CancelledCount)
	fmt.Fprintf(c.out, "  gross %s  tax %s  discount %s  net %s\n",
		models.Cents(r.Gross), models.Cents(r.Tax), models.Cents(r.Discount), models.Cents(r.Net))
	for _, m := range r.PaymentMethods {
		fmt.Fprintf(c.out, "  %-10s %4d %s\n", m.Method, m.Count, models.Cents(m.Total))
	}
	for _, ct := range r.Cashiers {
		fmt.Fprintf(c.out, "  cashier %-10s %4d %s\n", ct.CashierID, ct.Count, models.Cents(ct.Total))
	}
	if r.ExpectedCash.Valid {
		fmt.Fprintf(c.out, "  expected cash %s\n", models.Cents(r.ExpectedCash.Decimal))
	}
	if r.CashVariance.Valid {
		fmt.Fprintf(c.out, "  counted %s, variance %s\n", models.Cents(r.ClosingCash.Decimal), models.Cents(r.CashVariance.Decimal))
	}
}

func (c *Console) shift(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("shift open <cash> | close <cash> | current | report [id]")
	}
	switch args[0] {
	case "open":
		if len(args) != 2 {
			return usage("shift open <cash>")
		}
		cash, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		s, err := c.ledger.OpenShift(ctx, c.session.UserID, c.session.UserName, cash)
		if err != nil {
			return err
		}
		c.printShift(s)

	case "close":
		if len(args) != 2 {
			return usage("shift close <cash>")
		}
		cash, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		s, err := c.ledger.CloseShift(ctx, cash)
		if err != nil {
			return err
		}
		c.printShift(s)
		r, err := c.ledger.ShiftReport(ctx, s.ID)
		if err != nil {
			return err
		}
		c.printReport(r)

	case "current":
		s, err := c.ledger.Current(ctx)
		if err != nil {
			return err
		}
		c.printShift(s)

	case "report":
		var id string
		if len(args) > 1 {
			id = args[1]
		} else {
			s, err := c.ledger.Current(ctx)
			if err != nil {
				return err
			}
			id = s.ID
		}
		r, err := c.ledger.ShiftReport(ctx, id)
		if err != nil {
			return err
		}
		c.printReport(r)

	default:
		return usage("shift open <cash> | close <cash> | current | report [id]")
	}
	return nil
}

func (c *Console) dayReport(ctx context.Context, args []string) error {
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
	r, err := c.ledger.DayReport(ctx, day, userID)
	if err != nil {
		return err
	}
	c.printReport(r)
	return nil
}

func (c *Console) archive(ctx context.Context, args []string) error {
	if c.archiver == nil {
		return errNoArchive
	}
	dayArg := ""
	if len(args) > 0 {
		dayArg = args[0]
	}
	day, err := parseDay(dayArg, c.now())
	if err != nil {
		return err
	}
	r, err := c.ledger.DayReport(ctx, day, "")
	if err != nil {
		return err
	}
	key, err := c.archiver.Archive(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "archived %s\n", key)
	return nil
}
