// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/storage"
)

// Status describes a Device's worker goroutine lifecycle.
type Status int32

const (
	// StatusStarting is set from Spawn until the supplied init function
	// returns; requests issued in this window are rejected with
	// DeviceBusy unless the caller opted into WaitForRunning.
	StatusStarting Status = iota
	// StatusRunning is set once the storage is open and the worker is
	// servicing its command channel.
	StatusRunning
	// StatusStopped is set once the worker goroutine has exited, for any
	// reason.
	StatusStopped
)

// Options configures a Device before it is spawned.
type Options struct {
	// IdleThreshold is how long the worker waits for a new command
	// before concluding it is idle and running a storage side job.
	IdleThreshold time.Duration
	// MaxQueueLen is the pending-command count above which a newly
	// received command is rejected with DeviceBusy; the worker keeps
	// running.
	MaxQueueLen int
	// BusyThreshold is the pending-command count above which the device
	// is considered busy (but not yet overloaded).
	BusyThreshold int
	// MaxKeepBusyDuration is how long the device may stay continuously
	// busy before the worker stops with DeviceBusy.
	MaxKeepBusyDuration time.Duration
	// Logger receives a warning when the storage fails to open at start
	// or the worker goroutine stops with an error; a clean stop is not
	// logged. A nil Logger disables logging.
	Logger *logrus.Logger
}

// DefaultOptions returns cannyls's default device tuning: a 100ms idle
// threshold, a 100,000 command queue cap, a 1,000 command busy threshold,
// and a 600 second maximum continuous busy duration.
func DefaultOptions() *Options {
	return &Options{
		IdleThreshold:       100 * time.Millisecond,
		MaxQueueLen:         100000,
		BusyThreshold:       1000,
		MaxKeepBusyDuration: 600 * time.Second,
		Logger:              logrus.StandardLogger(),
	}
}

// Device owns a *storage.Storage exclusively via a dedicated worker
// goroutine; every operation against it is serialized through that
// goroutine's command channel, matching the "one management thread per
// physical device" requirement this package implements.
type Device struct {
	status atomic.Int32
	cmdCh  chan Command
	doneCh chan error
	stopCh chan struct{}
	opts   *Options
}

func (d *Device) setStatus(s Status) { d.status.Store(int32(s)) }

// Spawn starts a Device's worker goroutine, which calls initStorage to
// obtain the *storage.Storage it will own for the rest of its life before
// it begins servicing commands.
//
// The returned Device is usable immediately: commands issued before
// initStorage completes are rejected with DeviceBusy unless their Request
// opted into WaitForRunning.
func Spawn(opts *Options, initStorage func() (*storage.Storage, error)) *Device {
	if opts == nil {
		opts = DefaultOptions()
	}
	d := &Device{
		cmdCh:  make(chan Command),
		doneCh: make(chan error, 1),
		stopCh: make(chan struct{}),
		opts:   opts,
	}
	d.setStatus(StatusStarting)

	go d.run(initStorage)
	return d
}

// Handle returns a handle through which commands can be issued to d.
func (d *Device) Handle() *Handle {
	return &Handle{device: d}
}

// Status reports the worker goroutine's current lifecycle state.
func (d *Device) Status() Status {
	return Status(d.status.Load())
}

// Wait blocks until the worker goroutine exits, returning the error (if
// any) it stopped with.
func (d *Device) Wait() error {
	return <-d.doneCh
}

// Stop requests the worker goroutine to exit after it finishes whatever
// it is currently doing. It does not block until the worker has actually
// stopped; call Wait for that.
func (d *Device) Stop(deadline Deadline) {
	d.Handle().stop(deadline)
}

func (d *Device) run(initStorage func() (*storage.Storage, error)) {
	st, err := initStorage()
	if err != nil {
		d.setStatus(StatusStopped)
		close(d.stopCh)
		d.log("device failed to start: %s", err)
		d.doneCh <- err
		return
	}
	d.setStatus(StatusRunning)

	w := &worker{
		storage:       st,
		queue:         newDeadlineQueue(),
		idleThreshold: d.opts.IdleThreshold,
		maxQueueLen:   d.opts.MaxQueueLen,
		busyThreshold: d.opts.BusyThreshold,
		maxKeepBusy:   d.opts.MaxKeepBusyDuration,
		cmdCh:         d.cmdCh,
	}

	var runErr error
	for {
		keepRunning, err := w.runOnce()
		if err != nil {
			runErr = err
			break
		}
		if !keepRunning {
			break
		}
	}

	d.setStatus(StatusStopped)
	close(d.stopCh)
	w.drainQueue()
	if runErr != nil {
		d.log("device worker stopped: %s", runErr)
	}
	d.doneCh <- runErr
}

func (d *Device) log(format string, args ...interface{}) {
	if d.opts.Logger != nil {
		d.opts.Logger.Warnf(format, args...)
	}
}

// worker is the state the device goroutine loops over; splitting it out of
// Device keeps every field here accessible only from the single goroutine
// that owns it.
type worker struct {
	storage       *storage.Storage
	queue         *deadlineQueue
	idleThreshold time.Duration
	maxQueueLen   int
	busyThreshold int
	maxKeepBusy   time.Duration
	cmdCh         chan Command

	startBusyTime time.Time
	busySet       bool
}

// runOnce implements the three-step main loop: first drain any command
// already waiting without blocking, then work through the queue, and only
// block (with a timeout) once both are empty -- at which point a timeout
// means the device is idle and due for a storage side job.
func (w *worker) runOnce() (bool, error) {
	select {
	case cmd := <-w.cmdCh:
		w.admit(cmd)
		return true, nil
	default:
	}

	if cmd, ok := w.queue.pop(); ok {
		if err := w.checkOverload(); err != nil {
			cmd.fail(err)
			return false, err
		}
		return w.handle(cmd)
	}

	select {
	case cmd := <-w.cmdCh:
		w.admit(cmd)
		return true, nil
	case <-time.After(w.idleThreshold):
		return true, w.storage.RunSideJobOnce()
	}
}

// admit enqueues cmd, or -- if doing so would push the queue over
// maxQueueLen -- rejects just that command with DeviceBusy and leaves the
// device itself running. Only sustained overload (see checkOverload)
// terminates the worker.
func (w *worker) admit(cmd Command) {
	if w.queue.len()+1 > w.maxQueueLen {
		cmd.fail(errors.WithStack(internalerror.New(internalerror.DeviceBusy,
			"device command queue length %d would exceed the maximum %d", w.queue.len()+1, w.maxQueueLen)))
		return
	}
	w.queue.push(cmd)
}

func (w *worker) handle(cmd Command) (bool, error) {
	if _, ok := cmd.(*stopCommand); ok {
		_ = cmd.run(w.storage)
		return false, nil
	}
	return true, cmd.run(w.storage)
}

func (w *worker) checkOverload() error {
	if w.queue.len() <= w.busyThreshold {
		w.busySet = false
		return nil
	}
	if !w.busySet {
		w.busySet = true
		w.startBusyTime = time.Now()
		return nil
	}
	if elapsed := time.Since(w.startBusyTime); elapsed > w.maxKeepBusy {
		return errors.WithStack(internalerror.New(internalerror.DeviceBusy,
			"device has been busy (queue length > %d) for %s, exceeding the %s limit",
			w.busyThreshold, elapsed, w.maxKeepBusy))
	}
	return nil
}

// drainQueue fails every command still queued when the worker exits, so no
// caller is left blocked on a reply that will never come.
func (w *worker) drainQueue() {
	for {
		cmd, ok := w.queue.pop()
		if !ok {
			return
		}
		cmd.fail(errors.WithStack(internalerror.New(internalerror.DeviceTerminated,
			"device stopped before this command could run")))
	}
}

func (w *worker) checkQueueLimit() error {
	if w.queue.len() > w.maxQueueLen {
		return errors.WithStack(internalerror.New(internalerror.DeviceBusy,
			"device command queue length %d exceeds the maximum %d", w.queue.len(), w.maxQueueLen))
	}
	return nil
}
