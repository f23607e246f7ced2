package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/lanpos/internal/coordination/discovery"
	"github.com/dmitrijs2005/lanpos/internal/models"
)

func (c *Console) showMode() error {
	cfg := c.coord.Config().Redacted()
	fmt.Fprintf(c.out, "register %s (%s)\n", cfg.RegisterName, cfg.RegisterID)
	fmt.Fprintf(c.out, "mode %s, port %d\n", cfg.Mode, cfg.Port)
	if cfg.ServerAddress != "" {
		fmt.Fprintf(c.out, "server %s:%d\n", cfg.ServerAddress, cfg.ServerPort)
	}
	return nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("bad port %q", s)
	}
	return p, nil
}

// secret asks for the shared secret. An empty answer keeps the stored one.
func (c *Console) secret() (string, error) {
	return GetSecret("Shared secret (empty keeps current)", c.out)
}

func (c *Console) setMode(ctx context.Context, args []string) error {
	const u = "set-mode standalone | server [port] | client <address> [port]"
	if len(args) == 0 {
		return usage(u)
	}
	mode, err := models.ParseMode(args[0])
	if err != nil {
		return usage(u)
	}

	var cfg models.CoordinationConfig
	switch mode {
	case models.ModeServer:
		if len(args) > 1 {
			if cfg.Port, err = parsePort(args[1]); err != nil {
				return err
			}
		}
	case models.ModeClient:
		if len(args) < 2 {
			return usage(u)
		}
		cfg.ServerAddress = args[1]
		if len(args) > 2 {
			if cfg.ServerPort, err = parsePort(args[2]); err != nil {
				return err
			}
		}
	}
	if mode != models.ModeStandalone {
		if cfg.SharedSecret, err = c.secret(); err != nil {
			return err
		}
	}

	if err := c.coord.SetMode(ctx, mode, cfg); err != nil {
		return err
	}
	return c.showMode()
}

func (c *Console) testConnection(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("test-connection <address> [port]")
	}
	cfg := models.CoordinationConfig{ServerAddress: args[0]}
	var err error
	if len(args) > 1 {
		if cfg.ServerPort, err = parsePort(args[1]); err != nil {
			return err
		}
	}
	if cfg.SharedSecret, err = c.secret(); err != nil {
		return err
	}
	peer, err := c.coord.TestConnection(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "connected to %s at %s:%d\n", peer.Name, peer.Address, peer.Port)
	return nil
}

func (c *Console) discover(ctx context.Context, args []string) error {
	cidr := ""
	if len(args) > 0 {
		cidr = args[0]
	}

	progress := make(chan discovery.Progress)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		last := -1
		for p := range progress {
			// one line per ten percent
			if step := p.Checked * 10 / p.Total; step != last {
				last = step
				fmt.Fprintf(c.out, "  scanned %d/%d\n", p.Checked, p.Total)
			}
		}
	}()
	peers, err := c.coord.Discover(ctx, cidr, progress)
	close(progress)
	<-drained

	for _, p := range peers {
		fmt.Fprintf(c.out, "  %-15s %5d  %s\n", p.Address, p.Port, p.Name)
	}
	fmt.Fprintf(c.out, "%d registers found\n", len(peers))
	return err
}
