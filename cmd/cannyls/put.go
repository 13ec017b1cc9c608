// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frugalos/cannyls/device"
	"github.com/frugalos/cannyls/lump"
)

func addPutCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "put PATH LUMP-ID VALUE",
		Short: "Store a lump, reading VALUE from disk if it starts with @",
		Args:  cobra.ExactArgs(3),
		RunE:  runPut,
	}
	parent.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	id, err := lump.ParseID(args[1])
	if err != nil {
		return err
	}
	raw, err := resolveValue(args[2])
	if err != nil {
		return err
	}
	data, err := lump.New(raw)
	if err != nil {
		return err
	}

	d, err := openDevice(args[0], 0, false)
	if err != nil {
		return err
	}
	defer closeDevice(d)

	reply := d.Handle().Request().Deadline(device.Immediate()).JournalSync().Put(id, data)
	res := <-reply
	if res.Err != nil {
		return res.Err
	}
	if res.Value {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "overwritten %s\n", id)
	}
	return nil
}

// resolveValue returns s's bytes directly, unless it names a file via a
// leading '@', in which case that file's contents are read instead.
func resolveValue(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "@"); ok {
		return os.ReadFile(rest)
	}
	return []byte(s), nil
}
