package discovery

import (
	"context"
	"errors"
	"net/netip"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/coordination/rpc"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// GRPCProber performs the unauthenticated coordination handshake.
type GRPCProber struct {
	creds       credentials.TransportCredentials
	dialOptions []grpc.DialOption
}

func NewGRPCProber(creds credentials.TransportCredentials, opts ...grpc.DialOption) *GRPCProber {
	return &GRPCProber{creds: creds, dialOptions: opts}
}

func (p *GRPCProber) Probe(ctx context.Context, target netip.AddrPort) (*models.RegisterPeer, error) {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(p.creds)}, p.dialOptions...)
	conn, err := grpc.NewClient(target.String(), opts...)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	hs, err := rpc.Handshake(ctx, conn)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) || errors.Is(err, common.ErrConnectionTimeout) {
			return nil, nil
		}
		return nil, err
	}
	return &models.RegisterPeer{
		Address:         target.Addr().String(),
		Port:            int(target.Port()),
		Name:            hs.RegisterName,
		RegisterID:      hs.RegisterID,
		ProtocolVersion: hs.ProtocolVersion,
	}, nil
}
