package common

// AuthTokenHeaderName is the gRPC metadata key carrying the signed register
// token on coordination requests.
const AuthTokenHeaderName = "x-register-token"

// ProtocolVersion is advertised in the discovery handshake. Peers with a
// different version are reported but not connectable.
const ProtocolVersion = 1

// DefaultCoordinationPort is the well-known port probed by peer discovery.
const DefaultCoordinationPort = 50777
