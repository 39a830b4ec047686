package pv

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is a wrapper of Connection with logging and typed accessors.
type Client struct {
	conn Connection
}

// NewClient returns a new Client on top of the given connection.
func NewClient(conn Connection) *Client {
	return &Client{
		conn: conn,
	}
}

// Get reads the current value of a variable.
func (c *Client) Get(name string) (any, error) {
	logrus.WithFields(logrus.Fields{
		"pv": name,
	}).Trace("Trying to read PV")

	v, err := c.conn.Get(name)
	if err != nil {
		return v, err
	}

	logrus.WithFields(logrus.Fields{
		"pv":  name,
		"val": v,
	}).Trace("Read PV succeed")

	return v, nil
}

// Put writes a value without waiting for completion.
func (c *Client) Put(name string, value any) error {
	logrus.WithFields(logrus.Fields{
		"pv":  name,
		"val": value,
	}).Trace("Trying to write PV")

	err := c.conn.Put(name, value)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"pv":  name,
		"val": value,
	}).Trace("Write PV succeed")

	return nil
}

// PutWait writes a value and blocks until the device confirms it.
func (c *Client) PutWait(name string, value any) error {
	logrus.WithFields(logrus.Fields{
		"pv":  name,
		"val": value,
	}).Trace("Trying to write PV and wait for completion")

	err := c.conn.PutWait(name, value)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"pv":  name,
		"val": value,
	}).Trace("Write PV completed")

	return nil
}

// Wait blocks until the variable equals value or the timeout expires.
func (c *Client) Wait(name string, value any, timeout time.Duration) error {
	logrus.WithFields(logrus.Fields{
		"pv":      name,
		"val":     value,
		"timeout": timeout,
	}).Trace("Waiting for PV")

	return c.conn.Wait(name, value, timeout)
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Float reads a variable and converts it to float64.
func (c *Client) Float(name string) (float64, error) {
	v, err := c.Get(name)
	if err != nil {
		return 0, err
	}

	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("%s: incorrect type %T, want float", name, v)
	}
}

// Int reads a variable and converts it to int. Floats are accepted if
// they carry an integral value.
func (c *Client) Int(name string) (int, error) {
	v, err := c.Get(name)
	if err != nil {
		return 0, err
	}

	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("%s: non-integral value %v", name, t)
		}
		return int(t), nil
	default:
		return 0, fmt.Errorf("%s: incorrect type %T, want int", name, v)
	}
}

// String reads a variable and converts it to string.
func (c *Client) String(name string) (string, error) {
	v, err := c.Get(name)
	if err != nil {
		return "", err
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: incorrect type %T, want string", name, v)
	}

	return s, nil
}
