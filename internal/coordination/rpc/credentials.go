package rpc

import (
	"fmt"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// TLSFiles selects the transport for coordination traffic. Plaintext is
// only used when AllowInsecure is set by the operator.
type TLSFiles struct {
	CertFile      string
	KeyFile       string
	CAFile        string
	AllowInsecure bool
}

func ServerCredentials(t TLSFiles) (credentials.TransportCredentials, error) {
	switch {
	case t.CertFile != "" && t.KeyFile != "":
		c, err := credentials.NewServerTLSFromFile(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, &common.ConfigurationError{Reason: fmt.Sprintf("load tls certificate: %v", err)}
		}
		return c, nil
	case t.AllowInsecure:
		return insecure.NewCredentials(), nil
	default:
		return nil, &common.ConfigurationError{Reason: "server mode needs a TLS certificate and key or explicit insecure transport"}
	}
}

func ClientCredentials(t TLSFiles) (credentials.TransportCredentials, error) {
	switch {
	case t.CAFile != "":
		c, err := credentials.NewClientTLSFromFile(t.CAFile, "")
		if err != nil {
			return nil, &common.ConfigurationError{Reason: fmt.Sprintf("load tls ca: %v", err)}
		}
		return c, nil
	case t.AllowInsecure:
		return insecure.NewCredentials(), nil
	default:
		return nil, &common.ConfigurationError{Reason: "client mode needs a TLS CA or explicit insecure transport"}
	}
}
