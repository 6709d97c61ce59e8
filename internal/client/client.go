// Package client implements the store's network client: a connection
// wrapper that frames one request per command and reads back one response,
// in order.
package client

import (
	"encoding/json"
	"net"
	"time"

	"github.com/iamNilotpal/ember/internal/codec"
	"github.com/iamNilotpal/ember/internal/protocol"
)

const dialTimeout = 5 * time.Second

// Connection is a client connection to the server. It is not safe for
// concurrent use; responses are matched to requests by order alone.
type Connection struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the server at addr.
func Dial(addr string) (*Connection, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Connection{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

// Set sends an upsert and returns the server's result.
func (c *Connection) Set(key, value string) (protocol.Result, error) {
	return c.roundTrip(codec.Set(key, value))
}

// Get sends a lookup and returns the server's result. A successful result
// with a nil Value means the key is absent.
func (c *Connection) Get(key string) (protocol.Result, error) {
	return c.roundTrip(codec.Get(key))
}

// Remove sends a tombstone request and returns the server's result.
func (c *Connection) Remove(key string) (protocol.Result, error) {
	return c.roundTrip(codec.Remove(key))
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}

func (c *Connection) roundTrip(cmd codec.Command) (protocol.Result, error) {
	if err := c.enc.Encode(protocol.Request{Command: cmd}); err != nil {
		return protocol.Result{}, err
	}

	var resp protocol.Response
	if err := c.dec.Decode(&resp); err != nil {
		return protocol.Result{}, err
	}
	return resp.Result, nil
}
