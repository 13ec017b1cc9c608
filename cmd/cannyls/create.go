// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCapacityFlag uint64

func addCreateCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "create PATH",
		Short: "Format a new lusf storage file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCreate,
	}
	cmd.Flags().Uint64Var(&createCapacityFlag, "capacity", 1<<20, "total file size in bytes")
	parent.AddCommand(cmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	d, err := openDevice(args[0], createCapacityFlag, true)
	if err != nil {
		return err
	}
	closeDevice(d)
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%d bytes)\n", args[0], createCapacityFlag)
	return nil
}
