// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frugalos/cannyls/device"
	"github.com/frugalos/cannyls/lump"
)

func addListCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "list PATH",
		Short: "Print every live lump id, one per line",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
	parent.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) error {
	d, err := openDevice(args[0], 0, false)
	if err != nil {
		return err
	}
	defer closeDevice(d)

	reply := d.Handle().Request().Deadline(device.Immediate()).List()
	res := <-reply
	if res.Err != nil {
		return res.Err
	}
	for _, id := range res.Value {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func addListRangeCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "list-range PATH START END",
		Short: "Print every live lump id in [START, END), one per line",
		Args:  cobra.ExactArgs(3),
		RunE:  runListRange,
	}
	parent.AddCommand(cmd)
}

func runListRange(cmd *cobra.Command, args []string) error {
	start, end, err := parseIDRange(args[1], args[2])
	if err != nil {
		return err
	}

	d, err := openDevice(args[0], 0, false)
	if err != nil {
		return err
	}
	defer closeDevice(d)

	reply := d.Handle().Request().Deadline(device.Immediate()).ListRange(start, end)
	res := <-reply
	if res.Err != nil {
		return res.Err
	}
	for _, id := range res.Value {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func parseIDRange(startHex, endHex string) (lump.Id, lump.Id, error) {
	start, err := lump.ParseID(startHex)
	if err != nil {
		return lump.Id{}, lump.Id{}, err
	}
	end, err := lump.ParseID(endHex)
	if err != nil {
		return lump.Id{}, lump.Id{}, err
	}
	return start, end, nil
}
