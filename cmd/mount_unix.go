package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"VbsFS/pkg/fuse"
	"VbsFS/pkg/utils"

	"github.com/google/gops/agent"
	"github.com/juicedata/godaemon"
	"github.com/urfave/cli/v2"
)

func mountFlags() *cli.Command {
	return &cli.Command{
		Name:      "mount",
		Usage:     "mount all recordings as read-only files",
		ArgsUsage: "MOUNTPOINTS MOUNTPOINT",
		Action:    mount,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mk6",
				Usage: "recordings are in Mark6 scatter-gather layout",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "look for disk<N> mountpoints under this directory",
			},
			&cli.BoolFlag{
				Name:    "d",
				Aliases: []string{"background"},
				Usage:   "run in background",
			},
			&cli.StringFlag{
				Name:  "log",
				Value: "/var/log/vbsfs.log",
				Usage: "path of log file when running in background",
			},
			&cli.StringFlag{
				Name:  "o",
				Usage: "other FUSE options",
			},
			&cli.BoolFlag{
				Name:  "no-agent",
				Usage: "disable the gops diagnostic agent",
			},
		},
	}
}

func checkMountpoint(mp string) {
	for i := 0; i < 20; i++ {
		time.Sleep(time.Millisecond * 500)
		st, err := os.Stat(mp)
		if err == nil {
			if sys, ok := st.Sys().(*syscall.Stat_t); ok && sys.Ino == 1 {
				logger.Infof("\033[92mOK\033[0m, recordings are ready at %s", mp)
				return
			}
		}
		_, _ = os.Stdout.WriteString(".")
		_ = os.Stdout.Sync()
	}
	_, _ = os.Stdout.WriteString("\n")
	logger.Fatalf("fail to mount after 10 seconds, please mount in foreground")
}

func makeDaemon(c *cli.Context, mp string) error {
	var attrs godaemon.DaemonAttr
	attrs.OnExit = func(stage int) error {
		if stage != 0 {
			return nil
		}
		checkMountpoint(mp)
		return nil
	}

	// the current dir will be changed to root in daemon,
	// so the mount point has to be an absolute path.
	if godaemon.Stage() == 0 {
		for i, a := range os.Args {
			if a == mp {
				amp, err := filepath.Abs(mp)
				if err == nil {
					os.Args[i] = amp
				} else {
					logger.Warnf("abs of %s: %s", mp, err)
				}
			}
		}
		var err error
		logfile := c.String("log")
		attrs.Stdout, err = os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Errorf("open log file %s: %s", logfile, err)
		}
	}
	_, _, err := godaemon.MakeDaemon(&attrs)
	return err
}

func mount(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		return fmt.Errorf("MOUNTPOINT is needed")
	}
	var mpsArg, mp string
	if c.Args().Len() >= 2 {
		mpsArg, mp = c.Args().Get(0), c.Args().Get(1)
	} else {
		mp = c.Args().Get(0)
	}
	mps := mountpointList(c, mpsArg)

	if c.Bool("d") {
		if err := makeDaemon(c, mp); err != nil {
			logger.Fatalf("make daemon: %s", err)
		}
		if godaemon.Stage() > 0 {
			utils.SetOutFile(c.String("log"))
		}
	}
	if !c.Bool("no-agent") {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Warnf("gops agent: %s", err)
		}
	}

	conf := &fuse.Config{
		Mountpoints: mps,
		Mk6:         c.Bool("mk6"),
		Mountpoint:  mp,
	}
	logger.Infof("mounting %d mountpoints at %s ...", len(mps), mp)
	if err := fuse.Serve(conf, c.String("o")); err != nil {
		logger.Fatalf("fuse: %s", err)
	}
	return nil
}
