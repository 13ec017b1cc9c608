// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command cannyls is a thin CLI driver over a single lusf-formatted
// storage file, giving the engine one exercised external entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "cannyls",
		Short: "Drive a single lusf-formatted CannyLS storage file",
	}

	addCreateCommand(root)
	addPutCommand(root)
	addGetCommand(root)
	addDeleteCommand(root)
	addListCommand(root)
	addListRangeCommand(root)
	addUsageCommand(root)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
