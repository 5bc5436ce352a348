package main

import (
	"fmt"

	"VbsFS/pkg/vbs"

	"github.com/urfave/cli/v2"
)

func lsFlags() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "list recordings found on the mountpoints",
		ArgsUsage: "[MOUNTPOINTS]",
		Action:    ls,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Usage: "look for disk<N> mountpoints under this directory",
			},
		},
	}
}

func ls(c *cli.Context) error {
	setLoggerLevel(c)
	mps := mountpointList(c, c.Args().Get(0))
	for _, name := range vbs.ListRecordings(mps) {
		fmt.Println(name)
	}
	return nil
}
