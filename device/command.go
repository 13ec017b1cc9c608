// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/lump"
	"github.com/frugalos/cannyls/storage"
)

// Result is what a command's reply channel carries: the operation's value,
// or the error it failed with.
type Result[T any] struct {
	Value T
	Err   error
}

// Reply is the receiving end of a command's one-shot reply, the Go
// channel-based substitute for fibers::sync::oneshot in the original
// implementation this package's scheduling discipline is modeled on.
type Reply[T any] <-chan Result[T]

func newReply[T any]() (chan Result[T], Reply[T]) {
	ch := make(chan Result[T], 1)
	return ch, ch
}

func send[T any](ch chan Result[T], value T, err error) {
	ch <- Result[T]{Value: value, Err: err}
	close(ch)
}

// Command is a unit of work queued against a Device. Implementations are
// confined to this package; callers obtain one via the Request builder.
type Command interface {
	// Deadline is the scheduling priority the worker enqueues this
	// command under.
	Deadline() Deadline

	// run executes the command against s and delivers its reply. Its
	// return value is nil unless the failure is serious enough that the
	// worker goroutine itself must stop (see internalerror.Kind.IsFatal).
	run(s storageFacade) error

	// fail delivers err as this command's reply without ever running it
	// against a storage, for requests rejected before reaching the
	// worker (device starting up, already stopped, queue full).
	fail(err error)
}

// storageFacade is the subset of *storage.Storage a Command needs, kept as
// an interface so this package's tests can run commands against a fake.
type storageFacade interface {
	Get(id lump.Id) (lump.Data, bool, error)
	Head(id lump.Id) (lump.Header, bool)
	List() []lump.Id
	ListRange(start, end lump.Id) []lump.Id
	Put(id lump.Id, data lump.Data) (bool, error)
	Delete(id lump.Id) (bool, error)
	DeleteRange(start, end lump.Id) ([]lump.Id, error)
	Usage() storage.Usage
	UsageRange(start, end lump.Id) storage.RangeUsage
	JournalSync() error
	RunSideJobOnce() error
}

// maybeCriticalError reports the error if it is serious enough to stop the
// worker goroutine (storage corruption or an inconsistent in-memory
// invariant), or nil otherwise.
func maybeCriticalError(err error) error {
	if err == nil {
		return nil
	}
	if internalerror.KindOf(err).IsFatal() {
		return err
	}
	return nil
}

type getCommand struct {
	id       lump.Id
	deadline Deadline
	reply    chan Result[*lump.Data]
}

func (c *getCommand) Deadline() Deadline { return c.deadline }

func (c *getCommand) run(s storageFacade) error {
	data, ok, err := s.Get(c.id)
	var value *lump.Data
	if ok {
		value = &data
	}
	send(c.reply, value, err)
	return maybeCriticalError(err)
}

func (c *getCommand) fail(err error) {
	send(c.reply, nil, err)
}

type headCommand struct {
	id       lump.Id
	deadline Deadline
	reply    chan Result[*lump.Header]
}

func (c *headCommand) Deadline() Deadline { return c.deadline }

func (c *headCommand) run(s storageFacade) error {
	h, ok := s.Head(c.id)
	if !ok {
		send(c.reply, nil, nil)
		return nil
	}
	send(c.reply, &h, nil)
	return nil
}

func (c *headCommand) fail(err error) {
	send(c.reply, nil, err)
}

type listCommand struct {
	deadline Deadline
	reply    chan Result[[]lump.Id]
}

func (c *listCommand) Deadline() Deadline { return c.deadline }

func (c *listCommand) run(s storageFacade) error {
	send(c.reply, s.List(), nil)
	return nil
}

func (c *listCommand) fail(err error) {
	send(c.reply, nil, err)
}

type listRangeCommand struct {
	start, end lump.Id
	deadline   Deadline
	reply      chan Result[[]lump.Id]
}

func (c *listRangeCommand) Deadline() Deadline { return c.deadline }

func (c *listRangeCommand) run(s storageFacade) error {
	send(c.reply, s.ListRange(c.start, c.end), nil)
	return nil
}

func (c *listRangeCommand) fail(err error) {
	send(c.reply, nil, err)
}

type putCommand struct {
	id          lump.Id
	data        lump.Data
	deadline    Deadline
	journalSync bool
	reply       chan Result[bool]
}

func (c *putCommand) Deadline() Deadline { return c.deadline }

func (c *putCommand) run(s storageFacade) error {
	created, err := s.Put(c.id, c.data)
	if fatal := maybeCriticalError(err); fatal != nil {
		send(c.reply, false, err)
		return fatal
	}
	send(c.reply, created, err)
	if c.journalSync && err == nil {
		return s.JournalSync()
	}
	return nil
}

func (c *putCommand) fail(err error) {
	send(c.reply, false, err)
}

type deleteCommand struct {
	id          lump.Id
	deadline    Deadline
	journalSync bool
	reply       chan Result[bool]
}

func (c *deleteCommand) Deadline() Deadline { return c.deadline }

func (c *deleteCommand) run(s storageFacade) error {
	existed, err := s.Delete(c.id)
	if fatal := maybeCriticalError(err); fatal != nil {
		send(c.reply, false, err)
		return fatal
	}
	send(c.reply, existed, err)
	if c.journalSync && err == nil {
		return s.JournalSync()
	}
	return nil
}

func (c *deleteCommand) fail(err error) {
	send(c.reply, false, err)
}

type deleteRangeCommand struct {
	start, end  lump.Id
	deadline    Deadline
	journalSync bool
	reply       chan Result[[]lump.Id]
}

func (c *deleteRangeCommand) Deadline() Deadline { return c.deadline }

func (c *deleteRangeCommand) run(s storageFacade) error {
	ids, err := s.DeleteRange(c.start, c.end)
	if fatal := maybeCriticalError(err); fatal != nil {
		send(c.reply, nil, err)
		return fatal
	}
	send(c.reply, ids, err)
	if c.journalSync && err == nil {
		return s.JournalSync()
	}
	return nil
}

func (c *deleteRangeCommand) fail(err error) {
	send(c.reply, nil, err)
}

type usageCommand struct {
	deadline Deadline
	reply    chan Result[storage.Usage]
}

func (c *usageCommand) Deadline() Deadline { return c.deadline }

func (c *usageCommand) run(s storageFacade) error {
	send(c.reply, s.Usage(), nil)
	return nil
}

func (c *usageCommand) fail(err error) {
	send(c.reply, storage.Usage{}, err)
}

type usageRangeCommand struct {
	start, end lump.Id
	deadline   Deadline
	reply      chan Result[storage.RangeUsage]
}

func (c *usageRangeCommand) Deadline() Deadline { return c.deadline }

func (c *usageRangeCommand) run(s storageFacade) error {
	send(c.reply, s.UsageRange(c.start, c.end), nil)
	return nil
}

func (c *usageRangeCommand) fail(err error) {
	send(c.reply, storage.RangeUsage{}, err)
}

type stopCommand struct {
	deadline Deadline
	reply    chan Result[struct{}]
}

func (c *stopCommand) Deadline() Deadline { return c.deadline }

func (c *stopCommand) run(storageFacade) error {
	send(c.reply, struct{}{}, nil)
	return nil
}

func (c *stopCommand) fail(err error) {
	send(c.reply, struct{}{}, err)
}
