// Package zaber drives Zaber motion stages over the ASCII protocol. Any byte
// stream works: a serial device opened by the caller or a TCP connection to
// a serial bridge.
package zaber

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrRejected signals an RJ reply.
	ErrRejected = errors.New("command rejected")
	// ErrFault signals a fault warning flag on a reply.
	ErrFault = errors.New("device fault")
	// ErrBadReply signals a line that is not a well-formed reply.
	ErrBadReply = errors.New("malformed reply")
)

// Protocol verbs.
const (
	VerbStatus   = ""
	VerbMoveAbs  = "move abs"
	VerbMoveRel  = "move rel"
	VerbGetPos   = "get pos"
	VerbStop     = "stop"
	VerbMaxSpeed = "set maxspeed"
)

// Address selects one axis of one device. Axis 0 addresses the whole device.
type Address struct {
	Device int `yaml:"device"`
	Axis   int `yaml:"axis"`
}

// Command is one request line.
type Command struct {
	Address
	Verb string
	Data []int64
}

// String renders the command without the line terminator,
// e.g. "/1 2 move abs 10000".
func (c Command) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "/%d %d", c.Device, c.Axis)
	if c.Verb != "" {
		b.WriteByte(' ')
		b.WriteString(c.Verb)
	}
	for _, d := range c.Data {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(d, 10))
	}
	return b.String()
}

// Reply is a parsed "@" line, e.g. "@01 2 OK BUSY -- 0".
type Reply struct {
	Address
	OK      bool
	Busy    bool
	Warning string
	Data    string
}

// Int parses the data field as one integer.
func (r Reply) Int() (int64, error) {
	f := strings.Fields(r.Data)
	if len(f) == 0 {
		return 0, fmt.Errorf("%w: no data", ErrBadReply)
	}
	v, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: data %q: %w", ErrBadReply, r.Data, err)
	}
	return v, nil
}

// Err reports a rejection or a fault carried by the reply.
func (r Reply) Err() error {
	if !r.OK {
		return fmt.Errorf("%w: %s", ErrRejected, r.Data)
	}
	if strings.HasPrefix(r.Warning, "F") {
		return fmt.Errorf("%w: %s", ErrFault, r.Warning)
	}
	return nil
}

// ParseReply parses one reply line. A message id between the axis and the
// flag and a trailing ":XX" checksum are accepted and dropped.
func ParseReply(line string) (Reply, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "@") {
		return Reply{}, fmt.Errorf("%w: %q", ErrBadReply, line)
	}
	if i := strings.LastIndexByte(line, ':'); i > 0 && len(line)-i == 3 {
		line = line[:i]
	}
	f := strings.Fields(line[1:])
	if len(f) >= 6 {
		if _, err := strconv.Atoi(f[2]); err == nil {
			f = append(f[:2], f[3:]...)
		}
	}
	if len(f) < 5 {
		return Reply{}, fmt.Errorf("%w: %q", ErrBadReply, line)
	}

	dev, err := strconv.Atoi(f[0])
	if err != nil {
		return Reply{}, fmt.Errorf("%w: device %q", ErrBadReply, f[0])
	}
	axis, err := strconv.Atoi(f[1])
	if err != nil {
		return Reply{}, fmt.Errorf("%w: axis %q", ErrBadReply, f[1])
	}
	r := Reply{Address: Address{Device: dev, Axis: axis}, Warning: f[4]}
	switch f[2] {
	case "OK":
		r.OK = true
	case "RJ":
	default:
		return Reply{}, fmt.Errorf("%w: flag %q", ErrBadReply, f[2])
	}
	switch f[3] {
	case "BUSY":
		r.Busy = true
	case "IDLE":
	default:
		return Reply{}, fmt.Errorf("%w: status %q", ErrBadReply, f[3])
	}
	r.Data = strings.Join(f[5:], " ")
	return r, nil
}
