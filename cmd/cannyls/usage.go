// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frugalos/cannyls/device"
)

func addUsageCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "usage PATH",
		Short: "Report aggregate lump count and free block count",
		Args:  cobra.ExactArgs(1),
		RunE:  runUsage,
	}
	parent.AddCommand(cmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	d, err := openDevice(args[0], 0, false)
	if err != nil {
		return err
	}
	defer closeDevice(d)

	reply := d.Handle().Request().Deadline(device.Immediate()).Usage()
	res := <-reply
	if res.Err != nil {
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "lumps: %d\nfree blocks: %d\n",
		res.Value.LumpCount, res.Value.FreeBlocks)
	return nil
}
