package models

import "fmt"

// ModeKind names a coordination mode.
type ModeKind string

const (
	ModeStandalone ModeKind = "standalone"
	ModeServer     ModeKind = "server"
	ModeClient     ModeKind = "client"
)

func ParseMode(s string) (ModeKind, error) {
	switch m := ModeKind(s); m {
	case ModeStandalone, ModeServer, ModeClient:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// CoordinationConfig is persisted in the store metadata. SharedSecret never
// leaves the register; peers only ever see tokens derived from it.
type CoordinationConfig struct {
	Mode          ModeKind `json:"mode"`
	Port          int      `json:"port"`
	SharedSecret  string   `json:"shared_secret,omitempty"`
	RegisterName  string   `json:"register_name"`
	ServerAddress string   `json:"server_address,omitempty"`
	ServerPort    int      `json:"server_port,omitempty"`
	RegisterID    string   `json:"register_id"`
}

// Redacted is safe to log or print.
func (c CoordinationConfig) Redacted() CoordinationConfig {
	if c.SharedSecret != "" {
		c.SharedSecret = "***"
	}
	return c
}

// RegisterPeer is a register found by discovery. Never persisted.
type RegisterPeer struct {
	Address         string `json:"address"`
	Port            int    `json:"port"`
	Name            string `json:"name"`
	RegisterID      string `json:"register_id"`
	ProtocolVersion int    `json:"protocol_version"`
}
