package rmc

import (
	"time"

	"rmclink/cip"
	"rmclink/eip"
)

// Transport is the narrow contract the register layer consumes from the
// messaging engine.  The core depends only on this interface, not on the
// engine's internal framing, so the addressing, codec, and error mapping are
// testable against a fake.
type Transport interface {
	// Connect establishes the underlying session.
	Connect() error

	// Disconnect tears down the session; aborts any in-flight wait.
	Disconnect() error

	// SendExplicit performs one explicit-messaging exchange and returns the
	// parsed Message Router reply.  Blocks until a response or the
	// transport's deadline.
	SendExplicit(service byte, path cip.EPath_t, data []byte) (*cip.Response, error)
}

// EipTransport carries explicit messages over an EtherNet/IP session using
// unconnected messaging (SendRRData).
type EipTransport struct {
	client *eip.EipClient
}

// NewEipTransport targets host:port with the given per-request timeout.
// No network activity happens until Connect.
func NewEipTransport(host string, port uint16, timeout time.Duration) *EipTransport {
	c := eip.NewEipClientWithPort(host, port)
	if timeout > 0 {
		_ = c.SetTimeout(timeout)
	}
	return &EipTransport{client: c}
}

func (t *EipTransport) Connect() error {
	return t.client.Connect()
}

func (t *EipTransport) Disconnect() error {
	return t.client.Disconnect()
}

func (t *EipTransport) SendExplicit(service byte, path cip.EPath_t, data []byte) (*cip.Response, error) {
	req := cip.Request{Service: service, Path: path, Data: data}
	cpf := eip.NewUnconnectedPacket(req.Marshal())

	resp, err := t.client.SendRRData(*cpf)
	if err != nil {
		return nil, err
	}

	// Past this point the exchange completed; shape problems are response
	// defects, not link failures.
	raw, err := resp.UnconnectedData()
	if err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Err: err}
	}

	parsed, err := cip.ParseResponse(raw)
	if err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Err: err}
	}
	return parsed, nil
}
