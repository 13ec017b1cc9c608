// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/frugalos/cannyls/device"
	"github.com/frugalos/cannyls/nvm"
	"github.com/frugalos/cannyls/storage"
)

// openDevice spawns a Device over the lusf file at path, creating it with
// the given capacity first if create is true.
func openDevice(path string, capacity uint64, create bool) (*device.Device, error) {
	d := device.Spawn(nil, func() (*storage.Storage, error) {
		builder := nvm.NewFileNvmBuilder()
		if create {
			n, err := builder.Create(path, capacity)
			if err != nil {
				return nil, err
			}
			return storage.NewBuilder().Create(n)
		}
		n, err := builder.Open(path)
		if err != nil {
			return nil, err
		}
		return storage.NewBuilder().Open(n)
	})
	if err := waitRunning(d); err != nil {
		return nil, err
	}
	return d, nil
}

// waitRunning blocks until d's worker has finished starting (successfully
// or not), returning the startup error (if any) the worker exited with.
// A CLI invocation is one command against a freshly spawned Device, so
// this short poll -- rather than a dedicated "started" signal -- is the
// simplest thing that does not race Request.send against a worker that
// failed to start and never read its command channel.
func waitRunning(d *device.Device) error {
	for d.Status() == device.StatusStarting {
		time.Sleep(time.Millisecond)
	}
	if d.Status() == device.StatusStopped {
		return d.Wait()
	}
	return nil
}

// closeDevice requests an immediate stop and waits for the worker to exit,
// reporting any error it shut down with.
func closeDevice(d *device.Device) {
	d.Stop(device.Immediate())
	if err := d.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
