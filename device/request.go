// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/lump"
	"github.com/frugalos/cannyls/storage"
)

// Handle is a cheap, shareable reference to a Device used to issue
// commands against it. Obtain one with Device.Handle.
type Handle struct {
	device *Device
}

// Request builds a single command to issue against the device behind h.
// The Request it returns carries Infinity as its deadline until Deadline
// changes it.
func (h *Handle) Request() *Request {
	return &Request{handle: h, deadline: Infinity()}
}

// Request configures one command before it is issued: its scheduling
// deadline, whether a successful Put/Delete/DeleteRange should force a
// journal sync before replying, and whether to wait out the device's
// startup window instead of failing immediately.
type Request struct {
	handle         *Handle
	deadline       Deadline
	journalSync    bool
	waitForRunning bool
}

// Deadline overrides the request's scheduling deadline (default Infinity).
func (r *Request) Deadline(d Deadline) *Request {
	r.deadline = d
	return r
}

// JournalSync forces a journal sync (on top of the configured automatic
// cadence) once the request's Put/Delete/DeleteRange completes
// successfully, before the reply is delivered.
func (r *Request) JournalSync() *Request {
	r.journalSync = true
	return r
}

// WaitForRunning allows this request to be queued (rather than rejected
// with DeviceBusy) while the device is still starting up.
func (r *Request) WaitForRunning() *Request {
	r.waitForRunning = true
	return r
}

// Get issues a GET for id. The reply carries nil if no such lump exists.
func (r *Request) Get(id lump.Id) Reply[*lump.Data] {
	ch, reply := newReply[*lump.Data]()
	r.send(&getCommand{id: id, deadline: r.deadline, reply: ch})
	return reply
}

// Head issues a HEAD for id.
func (r *Request) Head(id lump.Id) Reply[*lump.Header] {
	ch, reply := newReply[*lump.Header]()
	r.send(&headCommand{id: id, deadline: r.deadline, reply: ch})
	return reply
}

// List issues a request for every live lump id.
func (r *Request) List() Reply[[]lump.Id] {
	ch, reply := newReply[[]lump.Id]()
	r.send(&listCommand{deadline: r.deadline, reply: ch})
	return reply
}

// ListRange issues a request for every live lump id in [start, end).
func (r *Request) ListRange(start, end lump.Id) Reply[[]lump.Id] {
	ch, reply := newReply[[]lump.Id]()
	r.send(&listRangeCommand{start: start, end: end, deadline: r.deadline, reply: ch})
	return reply
}

// Usage issues a request for the storage's overall allocator and index
// occupancy.
func (r *Request) Usage() Reply[storage.Usage] {
	ch, reply := newReply[storage.Usage]()
	r.send(&usageCommand{deadline: r.deadline, reply: ch})
	return reply
}

// UsageRange issues a request for the approximate lump count and combined
// size of every live lump id in [start, end).
func (r *Request) UsageRange(start, end lump.Id) Reply[storage.RangeUsage] {
	ch, reply := newReply[storage.RangeUsage]()
	r.send(&usageRangeCommand{start: start, end: end, deadline: r.deadline, reply: ch})
	return reply
}

// Put issues a PUT of data under id, replying whether id was newly
// created.
func (r *Request) Put(id lump.Id, data lump.Data) Reply[bool] {
	ch, reply := newReply[bool]()
	r.send(&putCommand{id: id, data: data, deadline: r.deadline, journalSync: r.journalSync, reply: ch})
	return reply
}

// Delete issues a DELETE of id, replying whether it existed.
func (r *Request) Delete(id lump.Id) Reply[bool] {
	ch, reply := newReply[bool]()
	r.send(&deleteCommand{id: id, deadline: r.deadline, journalSync: r.journalSync, reply: ch})
	return reply
}

// DeleteRange issues a DELETE of every lump id in [start, end), replying
// with the ids actually removed.
func (r *Request) DeleteRange(start, end lump.Id) Reply[[]lump.Id] {
	ch, reply := newReply[[]lump.Id]()
	r.send(&deleteRangeCommand{start: start, end: end, deadline: r.deadline, journalSync: r.journalSync, reply: ch})
	return reply
}

// stop issues a STOP, after which the device's worker goroutine exits once
// it has drained whatever it was doing.
func (r *Request) stop() Reply[struct{}] {
	ch, reply := newReply[struct{}]()
	r.send(&stopCommand{deadline: r.deadline, reply: ch})
	return reply
}

func (h *Handle) stop(deadline Deadline) {
	h.Request().Deadline(deadline).WaitForRunning().stop()
}

// send enqueues cmd on the device's command channel, or fails it locally
// (without ever reaching the worker) if the device is not ready to accept
// it.
func (r *Request) send(cmd Command) {
	d := r.handle.device
	if !r.waitForRunning && d.Status() == StatusStarting {
		cmd.fail(errors.WithStack(internalerror.New(internalerror.DeviceBusy,
			"device is still starting up")))
		return
	}
	if d.Status() == StatusStopped {
		cmd.fail(errors.WithStack(internalerror.New(internalerror.DeviceTerminated,
			"device has already stopped")))
		return
	}
	select {
	case d.cmdCh <- cmd:
	case <-d.stopCh:
		cmd.fail(errors.WithStack(internalerror.New(internalerror.DeviceTerminated,
			"device stopped before this command could be enqueued")))
	}
}
