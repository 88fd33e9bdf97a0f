package zaber

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// controller is an in-memory daisy chain answering ASCII commands. A move
// reports BUSY for busyPolls status queries, halfway there, then arrives.
type controller struct {
	mu        sync.Mutex
	in        bytes.Buffer
	out       bytes.Buffer
	pos       map[Address]int64
	target    map[Address]int64
	speed     map[Address]int64
	busy      map[int]int
	busyPolls int
	stops     int
	log       []string
	// noise is written before every reply.
	noise string
}

func newController(busyPolls int) *controller {
	return &controller{
		pos:       make(map[Address]int64),
		target:    make(map[Address]int64),
		speed:     make(map[Address]int64),
		busy:      make(map[int]int),
		busyPolls: busyPolls,
	}
}

func (c *controller) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.in.Write(p)
	for {
		line, err := c.in.ReadString('\n')
		if err != nil {
			c.in.WriteString(line)
			return len(p), nil
		}
		c.handle(strings.TrimSpace(line))
	}
}

func (c *controller) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Read(p) //nolint:wrapcheck // test stream
}

func (c *controller) reply(addr Address, ok bool, data string) {
	flag, status := "OK", "IDLE"
	if !ok {
		flag = "RJ"
	}
	if c.busy[addr.Device] > 0 {
		status = "BUSY"
	}
	c.out.WriteString(c.noise)
	fmt.Fprintf(&c.out, "@%02d %d %s %s -- %s\r\n", addr.Device, addr.Axis, flag, status, data)
}

func (c *controller) handle(line string) {
	c.log = append(c.log, line)
	f := strings.Fields(strings.TrimPrefix(line, "/"))
	dev, _ := strconv.Atoi(f[0])
	axis, _ := strconv.Atoi(f[1])
	addr := Address{Device: dev, Axis: axis}
	verb := strings.Join(f[2:], " ")
	var arg int64
	if n := len(f); n > 2 {
		if v, err := strconv.ParseInt(f[n-1], 10, 64); err == nil {
			arg, verb = v, strings.Join(f[2:n-1], " ")
		}
	}

	switch verb {
	case "":
		if c.busy[dev] > 0 {
			c.busy[dev]--
			if c.busy[dev] == 0 {
				c.arrive(dev)
			}
		}
		c.reply(addr, true, "0")
		return
	case VerbMoveAbs, VerbMoveRel:
		if verb == VerbMoveRel {
			arg += c.pos[addr]
		}
		c.target[addr] = arg
		c.pos[addr] += (arg - c.pos[addr]) / 2
		c.busy[dev] = c.busyPolls
		if c.busyPolls == 0 {
			c.arrive(dev)
		}
		c.reply(addr, true, "0")
		return
	case VerbGetPos:
		c.reply(addr, true, strconv.FormatInt(c.pos[addr], 10))
		return
	case VerbMaxSpeed:
		c.speed[addr] = arg
		c.reply(addr, true, "0")
		return
	case VerbStop:
		c.stops++
		c.busy[dev] = 0
		for a := range c.target {
			if a.Device == dev {
				c.target[a] = c.pos[a]
			}
		}
		c.reply(addr, true, "0")
		return
	}
	c.reply(addr, false, "BADCOMMAND")
}

func (c *controller) arrive(dev int) {
	for a, t := range c.target {
		if a.Device == dev {
			c.pos[a] = t
		}
	}
}
