package sfmt

import "fmt"

// IEList is the ordered content of a repeated IE slot
type IEList struct {
	Repeat RepeatType
	Items  []IE
}

// Len returns the number of IEs in the list
func (l *IEList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// Add appends an IE
func (l *IEList) Add(ie IE) {
	l.Items = append(l.Items, ie)
}

// Collection holds a parsed message for the lifetime of an exchange.
// It starts with one reference; the message is dropped when the last
// reference is put.
type Collection struct {
	name string
	msg  Message
	refs int
}

// NewCollection wraps msg with a single reference
func NewCollection(name string, msg Message) *Collection {
	return &Collection{name: name, msg: msg, refs: 1}
}

// Hold takes another reference
func (c *Collection) Hold() *Collection {
	c.refs++
	return c
}

// Put releases a reference. Releasing more references than were taken
// is a programming error and panics.
func (c *Collection) Put() {
	if c.refs <= 0 {
		panic(fmt.Sprintf("sfmt: put on released collection %s", c.name))
	}
	c.refs--
	if c.refs == 0 {
		c.msg = nil
	}
}

// Refs returns the current reference count
func (c *Collection) Refs() int {
	return c.refs
}

// Message returns the held message, nil once released
func (c *Collection) Message() Message {
	return c.msg
}

// Name returns the message name
func (c *Collection) Name() string {
	return c.name
}
