package main

import (
	"os"

	"VbsFS/pkg/utils"
	"VbsFS/pkg/vbs"
	"VbsFS/pkg/version"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var logger = utils.GetLogger("vbsfs")

func main() {
	app := &cli.App{
		Name:                 "vbsfs",
		Usage:                "access scattered VLBI recordings as single files",
		Version:              version.Version(),
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v", "debug"},
				Usage:   "enable debug log",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only warning and errors",
			},
		},
		Commands: []*cli.Command{
			lsFlags(),
			infoFlags(),
			catFlags(),
			mountFlags(),
			umountFlags(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("%s", err)
	}
}

func setLoggerLevel(c *cli.Context) {
	if c.Bool("verbose") {
		utils.SetLogLevel(logrus.DebugLevel)
	} else if c.Bool("quiet") {
		utils.SetLogLevel(logrus.WarnLevel)
	} else {
		utils.SetLogLevel(logrus.InfoLevel)
	}
}

// mountpointList resolves the MOUNTPOINTS argument: either a root directory
// to look for disk<N> mountpoints under (--root), or an explicit list of
// directories joined by ':' or ','.
func mountpointList(c *cli.Context, arg string) []string {
	if root := c.String("root"); root != "" {
		mps, err := vbs.FindMountpoints(root)
		if err != nil {
			logger.Fatalf("mountpoints under %s: %s", root, err)
		}
		return mps
	}
	if arg == "" {
		logger.Fatalf("MOUNTPOINTS is needed (or use --root)")
	}
	return utils.SplitDir(arg)
}
