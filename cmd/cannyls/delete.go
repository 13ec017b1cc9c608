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

func addDeleteCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "delete PATH LUMP-ID",
		Short: "Remove a lump",
		Args:  cobra.ExactArgs(2),
		RunE:  runDelete,
	}
	parent.AddCommand(cmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := lump.ParseID(args[1])
	if err != nil {
		return err
	}

	d, err := openDevice(args[0], 0, false)
	if err != nil {
		return err
	}
	defer closeDevice(d)

	reply := d.Handle().Request().Deadline(device.Immediate()).JournalSync().Delete(id)
	res := <-reply
	if res.Err != nil {
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "existed: %v\n", res.Value)
	return nil
}
