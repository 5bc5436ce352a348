package main

import (
	"encoding/json"
	"fmt"

	"VbsFS/pkg/vbs"

	"github.com/urfave/cli/v2"
)

func infoFlags() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "show the chunk map of a recording",
		ArgsUsage: "NAME [MOUNTPOINTS]",
		Action:    info,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mk6",
				Usage: "recording is in Mark6 scatter-gather layout",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "look for disk<N> mountpoints under this directory",
			},
		},
	}
}

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

func info(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		return fmt.Errorf("NAME is needed")
	}
	name := c.Args().Get(0)
	mps := mountpointList(c, c.Args().Get(1))

	ri, err := vbs.Info(name, mps, c.Bool("mk6"))
	if err != nil {
		logger.Fatalf("info %s: %s", name, err)
	}
	printJson(ri)
	return nil
}
