// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frugalos/cannyls/device"
	"github.com/frugalos/cannyls/lump"
)

func addGetCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "get PATH LUMP-ID",
		Short: "Print a lump's value to stdout",
		Args:  cobra.ExactArgs(2),
		RunE:  runGet,
	}
	parent.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := lump.ParseID(args[1])
	if err != nil {
		return err
	}

	d, err := openDevice(args[0], 0, false)
	if err != nil {
		return err
	}
	defer closeDevice(d)

	reply := d.Handle().Request().Deadline(device.Immediate()).Get(id)
	res := <-reply
	if res.Err != nil {
		return res.Err
	}
	if res.Value == nil {
		return fmt.Errorf("no lump with id %s", id)
	}
	_, err = os.Stdout.Write(res.Value.Bytes())
	return err
}
