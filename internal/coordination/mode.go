package coordination

import "github.com/dmitrijs2005/lanpos/internal/models"

// Mode is the active coordination mode: Standalone, Server or Client.
// It is chosen once per config load or SetMode call; callers switch on the
// concrete type instead of re-reading flags.
type Mode interface {
	Kind() models.ModeKind
	isMode()
}

// Standalone serves everything from the local store with no networking.
type Standalone struct{}

// Server serves the local store to itself and to authenticated peers.
type Server struct {
	Port int
}

// Client forwards basket, order and sync operations to a server register.
type Client struct {
	Address string
	Port    int
}

func (Standalone) Kind() models.ModeKind { return models.ModeStandalone }
func (Server) Kind() models.ModeKind     { return models.ModeServer }
func (Client) Kind() models.ModeKind     { return models.ModeClient }

func (Standalone) isMode() {}
func (Server) isMode()     {}
func (Client) isMode()     {}

func modeOf(cfg models.CoordinationConfig) Mode {
	switch cfg.Mode {
	case models.ModeServer:
		return Server{Port: cfg.Port}
	case models.ModeClient:
		return Client{Address: cfg.ServerAddress, Port: cfg.ServerPort}
	default:
		return Standalone{}
	}
}
