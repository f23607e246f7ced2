package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errUsage = errors.New("usage")

const helpText = `Sale:     basket, add <product> <qty> <price> [tax-rate] [name], qty <product> <qty>,
          remove <product>, customer <ref>, discount <code> <amount>, note <text>, clear,
          checkout <method> [tendered], retry <order> <method> [tendered], cancel <order>
Orders:   order <id>, orders [day] [cashier], sync [order], sync-all, reset <order>,
          pending, failures
Shift:    cashier <id> [name], shift open <cash> | close <cash> | current | report [id],
          report [day] [cashier], archive [day]
Network:  mode, set-mode standalone | server [port] | client <address> [port],
          test-connection <address> [port], discover [cidr]
          exit`

// Run reads commands until exit, EOF or ctx is done. Command errors are
// printed and never end the loop.
func (c *Console) Run(ctx context.Context) {
	fmt.Fprintln(c.out, "Register console (type 'help' for commands)")
	for ctx.Err() == nil {
		fmt.Fprintf(c.out, "pos (%s)> ", c.status())
		line, err := c.reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "exit" || parts[0] == "quit" {
			fmt.Fprintln(c.out, "Bye!")
			return
		}
		if err := c.Exec(ctx, parts[0], parts[1:]); err != nil {
			if errors.Is(err, errUsage) {
				fmt.Fprintln(c.out, err)
			} else {
				fmt.Fprintln(c.out, "error:", err)
			}
		}
	}
}

// Exec runs a single command.
func (c *Console) Exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(c.out, helpText)
		return nil

	case "basket":
		return c.showBasket(ctx)
	case "add":
		return c.addItem(ctx, args)
	case "qty":
		return c.updateQuantity(ctx, args)
	case "remove":
		return c.removeItem(ctx, args)
	case "customer":
		return c.setCustomer(ctx, args)
	case "discount":
		return c.applyDiscount(ctx, args)
	case "note":
		return c.setNote(ctx, args)
	case "clear":
		return c.clearBasket(ctx)

	case "checkout":
		return c.checkout(ctx, args)
	case "retry":
		return c.retryPayment(ctx, args)
	case "cancel":
		return c.cancel(ctx, args)
	case "order":
		return c.showOrder(ctx, args)
	case "orders":
		return c.findOrders(ctx, args)
	case "sync":
		return c.sync(ctx, args)
	case "sync-all":
		return c.syncAll(ctx)
	case "reset":
		return c.resetRetries(ctx, args)
	case "pending":
		return c.pending(ctx)
	case "failures":
		return c.failures(ctx)

	case "cashier":
		return c.setCashier(args)
	case "shift":
		return c.shift(ctx, args)
	case "report":
		return c.dayReport(ctx, args)
	case "archive":
		return c.archive(ctx, args)

	case "mode":
		return c.showMode()
	case "set-mode":
		return c.setMode(ctx, args)
	case "test-connection":
		return c.testConnection(ctx, args)
	case "discover":
		return c.discover(ctx, args)
	}
	return fmt.Errorf("%w: unknown command %q, try help", errUsage, cmd)
}

func usage(s string) error {
	return fmt.Errorf("%w: %s", errUsage, s)
}
