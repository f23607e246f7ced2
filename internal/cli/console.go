package cli

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/coordination/discovery"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/register"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Coordinator is the coordination surface the console drives.
type Coordinator interface {
	Config() models.CoordinationConfig
	Operations() register.Operations
	SetMode(ctx context.Context, mode models.ModeKind, cfg models.CoordinationConfig) error
	TestConnection(ctx context.Context, cfg models.CoordinationConfig) (*models.RegisterPeer, error)
	Discover(ctx context.Context, cidr string, progress chan<- discovery.Progress) ([]models.RegisterPeer, error)
}

type Ledger interface {
	OpenShift(ctx context.Context, userID, userName string, openingCash decimal.Decimal) (*models.Shift, error)
	CloseShift(ctx context.Context, closingCash decimal.Decimal) (*models.Shift, error)
	Current(ctx context.Context) (*models.Shift, error)
	ShiftReport(ctx context.Context, shiftID string) (models.DailyReport, error)
	DayReport(ctx context.Context, day time.Time, userID string) (models.DailyReport, error)
}

type Archiver interface {
	Archive(ctx context.Context, r models.DailyReport) (string, error)
}

type Console struct {
	coord    Coordinator
	ledger   Ledger
	archiver Archiver
	reader   *bufio.Reader
	out      io.Writer
	session  models.Session
	now      func() time.Time
}

type Option func(*Console)

// WithArchiver enables the archive command.
func WithArchiver(a Archiver) Option {
	return func(c *Console) { c.archiver = a }
}

func WithClock(now func() time.Time) Option {
	return func(c *Console) { c.now = now }
}

func NewConsole(coord Coordinator, ledger Ledger, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		coord:   coord,
		ledger:  ledger,
		reader:  bufio.NewReader(in),
		out:     out,
		session: models.Session{ID: uuid.NewString(), UserID: "staff"},
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Console) ops() register.Operations { return c.coord.Operations() }

// Session is the basket session the console is ringing up.
func (c *Console) Session() models.Session { return c.session }

func (c *Console) status() string {
	cfg := c.coord.Config()
	return string(cfg.Mode) + " " + c.session.UserID
}
