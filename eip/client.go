package eip

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"rmclink/logging"
)

const (
	NOP               uint16 = 0x00
	RegisterSession   uint16 = 0x65
	UnRegisterSession uint16 = 0x66
	SendRRData        uint16 = 0x6F
)

// DefaultPort is the registered EtherNet/IP TCP port (0xAF12).
const DefaultPort uint16 = 44818

// EipClient holds the target address, the net connection, and the session
// handle registered with the controller.
type EipClient struct {
	ipAddr  string
	port    uint16
	conn    net.Conn
	session uint32
	timeout time.Duration
	mu      sync.Mutex
}

// NewEipClient targets the default EtherNet/IP port.
func NewEipClient(ipaddr string) *EipClient {
	return NewEipClientWithPort(ipaddr, DefaultPort)
}

// NewEipClientWithPort allows for custom ports if needed.
func NewEipClientWithPort(ipaddr string, port uint16) *EipClient {
	return &EipClient{
		ipAddr:  ipaddr,
		port:    port,
		conn:    nil,
		session: 0,
		timeout: time.Second * 5,
	}
}

func (e *EipClient) GetAddr() string {
	if e == nil {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ipAddr
}

func (e *EipClient) GetTimeout() time.Duration {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeout
}

func (e *EipClient) SetTimeout(dur time.Duration) error {
	if e == nil {
		return fmt.Errorf("SetTimeout: nil client")
	}
	e.mu.Lock()
	e.timeout = dur
	e.mu.Unlock()
	return nil
}

func (e *EipClient) IsConnected() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn != nil
}

// Connect dials the controller and registers a session.  A previously open
// connection is replaced only after the new session registers successfully.
func (e *EipClient) Connect() error {
	if e == nil {
		return fmt.Errorf("Connect: received nil client")
	}

	e.mu.Lock()
	connString := e.ipAddr + ":" + strconv.Itoa(int(e.port))
	timeout := e.timeout
	e.mu.Unlock()

	logging.DebugConnect("eip", connString)

	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", connString)
	if err != nil {
		logging.DebugConnectError("eip", connString, err)
		return fmt.Errorf("Failed in Connect: %w", err)
	}

	logging.DebugLog("eip", "TCP connection established to %s", connString)

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(30 * time.Second)
	}

	var oldConn net.Conn

	e.mu.Lock()
	oldConn = e.conn
	oldSession := e.session

	e.conn = conn
	e.session = 0

	session, err := e.registerSession()
	if err != nil {
		e.conn = oldConn
		e.session = oldSession
		e.mu.Unlock()
		_ = conn.Close()
		logging.DebugError("eip", "RegisterSession", err)
		return fmt.Errorf("Connect: failed to register session. %w", err)
	}

	e.session = session
	e.mu.Unlock()

	logging.DebugConnectSuccess("eip", connString, fmt.Sprintf("session=0x%08X", session))

	if oldConn != nil {
		_ = oldConn.Close()
	}
	return nil
}

// Disconnect unregisters the session best-effort and closes the socket.
// A nil or already-closed client is a no-operation.
func (e *EipClient) Disconnect() error {
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		e.session = 0
		return nil
	}

	logging.DebugDisconnect("eip", e.ipAddr, "client disconnect requested")

	if e.session != 0 {
		return e.unRegisterSession()
	}

	err := e.conn.Close()
	e.conn = nil
	e.session = 0

	return err
}

// Register a session with the controller.
func (e *EipClient) registerSession() (uint32, error) {

	if e == nil || e.conn == nil {
		return 0, fmt.Errorf("RegisterSession: not connected")
	}

	msg := EipEncap{
		command:       RegisterSession,
		length:        4,
		sessionHandle: 0,
		status:        0,
		context:       [8]byte{},
		options:       0,
		data:          []byte{1, 0, 0, 0}, // protocol version 1, options 0
	}

	resp, err := e.transactEncap(msg)
	if err != nil {
		return 0, fmt.Errorf("RegisterSession: failed transaction: %w", err)
	}

	if resp.status != 0 {
		return 0, fmt.Errorf("Failed at RegisterSession(): encap returned status 0x%08x", resp.status)
	}

	if resp.sessionHandle == 0 {
		return 0, fmt.Errorf("Failed at RegisterSession(): got session_handle=0")
	}

	return resp.sessionHandle, nil
}

// De-register the session with the controller.  The controller closes its
// side without a reply, so send errors are reported but not retried.
func (e *EipClient) unRegisterSession() (err error) {

	if e == nil || e.conn == nil {
		return nil
	}

	if e.session == 0 {
		return nil
	}

	msg := EipEncap{
		command:       UnRegisterSession,
		length:        0,
		sessionHandle: e.session,
		status:        0,
		context:       [8]byte{},
		options:       0,
		data:          []byte{},
	}

	// Prevent hanging forever on a bad connection.
	_ = e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
	defer e.conn.SetWriteDeadline(time.Time{})

	err = e.sendEncap(msg)

	e.session = 0
	e.conn.Close()
	e.conn = nil

	return err
}

// Atomic request/response exchange with socket deadlines on both sides.
func (e *EipClient) transactEncap(msg EipEncap) (*EipEncap, error) {
	if e == nil {
		return nil, fmt.Errorf("transactEncap: received nil client")
	}

	if e.conn == nil {
		return nil, fmt.Errorf("transactEncap: not connected")
	}

	_ = e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
	defer e.conn.SetWriteDeadline(time.Time{})
	err := e.sendEncap(msg)
	if err != nil {
		return nil, fmt.Errorf("transactEncap: failed to send message.  %w", err)
	}

	_ = e.conn.SetReadDeadline(time.Now().Add(e.timeout))
	defer e.conn.SetReadDeadline(time.Time{})
	resp, err := e.recvEncap()
	if err != nil {
		return nil, fmt.Errorf("transactEncap: failed to read response.  %w", err)
	}

	return resp, nil
}

func (e *EipClient) sendEncap(msg EipEncap) error {
	if e == nil || e.conn == nil {
		return fmt.Errorf("sendEncap: not connected")
	}
	data := msg.Bytes()
	logging.DebugTX("eip", data)
	_, err := e.conn.Write(data)
	if err != nil {
		logging.DebugError("eip", "sendEncap write", err)
	}
	return err
}

func (e *EipClient) recvEncap() (*EipEncap, error) {
	if e == nil || e.conn == nil {
		return nil, fmt.Errorf("recvEncap: not connected")
	}
	header := make([]byte, 24)
	_, err := io.ReadFull(e.conn, header)
	if err != nil {
		logging.DebugError("eip", "recvEncap read header", err)
		return nil, fmt.Errorf("recvEncap: error reading encap header. %w", err)
	}

	payload_length := binary.LittleEndian.Uint16(header[2:4])
	sessionHandle := binary.LittleEndian.Uint32(header[4:8])

	// Sanity checks before proceeding.
	if payload_length > 65511 {
		logging.DebugLog("eip", "RX excessive payload length: %d", payload_length)
		return nil, fmt.Errorf("recvEncap: payload excessive.  Payload length: %d", payload_length)
	}
	// Session 0 in a response is always valid (e.g. RegisterSession itself);
	// otherwise the response session must match ours.
	if sessionHandle != 0 && e.session != 0 && sessionHandle != e.session {
		logging.DebugLog("eip", "RX session mismatch: expected 0x%08X, got 0x%08X", e.session, sessionHandle)
		return nil, fmt.Errorf("recvEncap: session mismatch in response.  Need %d, got %d", e.session, sessionHandle)
	}

	payload := make([]byte, payload_length)
	_, err = io.ReadFull(e.conn, payload)
	if err != nil {
		logging.DebugError("eip", "recvEncap read payload", err)
		return nil, fmt.Errorf("recvEncap: failed to read payload. %w", err)
	}

	fullPacket := append(header, payload...)
	logging.DebugRX("eip", fullPacket)

	var ctx [8]byte
	copy(ctx[:], header[12:20])

	return &EipEncap{
		command:       binary.LittleEndian.Uint16(header[:2]),
		length:        binary.LittleEndian.Uint16(header[2:4]),
		sessionHandle: binary.LittleEndian.Uint32(header[4:8]),
		status:        binary.LittleEndian.Uint32(header[8:12]),
		context:       ctx,
		options:       binary.LittleEndian.Uint32(header[20:24]),
		data:          payload,
	}, nil
}

// SendRRData sends an unconnected explicit message over TCP and waits for the
// matching response.  Requires a registered session.
func (e *EipClient) SendRRData(packet EipCommonPacket) (*EipCommonPacket, error) {
	if e == nil {
		return nil, fmt.Errorf("SendRRData: received nil client")
	}

	// Force atomic transaction.
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		return nil, fmt.Errorf("SendRRData: not connected.  Did you call Connect()?")
	}
	if e.session == 0 {
		return nil, fmt.Errorf("SendRRData: session_handle is 0 (did you call RegisterSession?)")
	}

	packet_bytes := packet.Bytes()
	if len(packet_bytes) == 0 {
		return nil, fmt.Errorf("SendRRData: conversion to bytes resulted in empty CIP request")
	}

	rrdata := EipCommandData{
		interfaceHandle: 0,
		timeout:         0,
		packet:          packet_bytes,
	}

	rrdata_bytes := rrdata.Bytes()

	req := EipEncap{
		command:       SendRRData,
		length:        uint16(len(rrdata_bytes)),
		sessionHandle: e.session,
		status:        0,
		context:       [8]byte{},
		options:       0,
		data:          rrdata_bytes,
	}

	resp, err := e.transactEncap(req)
	if err != nil {
		return nil, fmt.Errorf("SendRRData(): failed to transact packet. %w", err)
	}
	if resp.status != 0 {
		return nil, fmt.Errorf("SendRRData(): encapsulation status=0x%08x", resp.status)
	}

	cdata, err := ParseEipCommandData(resp.data)
	if err != nil {
		return nil, fmt.Errorf("SendRRData(): ParseEipCommandData failed.  %w", err)
	}

	cpacket, err := ParseEipCommonPacket(cdata.packet)
	if err != nil {
		return nil, fmt.Errorf("SendRRData: ParseEipCommonPacket failed.  %w", err)
	}

	return cpacket, nil
}

// SendNop implements the EIP No-Op command (0x00).  Can be used to validate
// the connection is still open; the controller sends no reply.
func (e *EipClient) SendNop() error {
	if e == nil {
		return fmt.Errorf("SendNop: received nil EipClient")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		return fmt.Errorf("SendNop: connection is nil.  Did you call Connect()?")
	}

	msg := EipEncap{
		command:       NOP,
		length:        0,
		sessionHandle: e.session,
		status:        0,
		context:       [8]byte{},
		options:       0,
		data:          nil,
	}

	_ = e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
	defer e.conn.SetWriteDeadline(time.Time{})

	err := e.sendEncap(msg)
	if err != nil {
		return fmt.Errorf("SendNop: failed to transmit message.  %w", err)
	}

	return nil
}
