package main

import (
	"fmt"
	"io"
	"os"

	"VbsFS/pkg/utils"
	"VbsFS/pkg/vbs"

	"github.com/juju/ratelimit"
	"github.com/urfave/cli/v2"
)

func catFlags() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "stream a recording to standard output",
		ArgsUsage: "NAME [MOUNTPOINTS]",
		Action:    cat,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mk6",
				Usage: "recording is in Mark6 scatter-gather layout",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "look for disk<N> mountpoints under this directory",
			},
			&cli.Int64Flag{
				Name:  "bwlimit",
				Usage: "limit the output bandwidth in MiB/s",
			},
			&cli.IntFlag{
				Name:  "buffer",
				Value: 4,
				Usage: "read buffer size in MiB",
			},
		},
	}
}

// limitedWriter throttles writes with a token bucket.
type limitedWriter struct {
	io.Writer
	bucket *ratelimit.Bucket
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	n, err := w.Writer.Write(p)
	if w.bucket != nil {
		w.bucket.Wait(int64(n))
	}
	return n, err
}

func cat(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		return fmt.Errorf("NAME is needed")
	}
	name := c.Args().Get(0)
	mps := mountpointList(c, c.Args().Get(1))

	var fd int
	var err error
	if c.Bool("mk6") {
		fd, err = vbs.OpenMk6(name, mps)
	} else {
		fd, err = vbs.Open(name, mps)
	}
	if err != nil {
		logger.Fatalf("open %s: %s", name, err)
	}
	defer func() {
		if err := vbs.Close(fd); err != nil {
			logger.Errorf("close %s: %s", name, err)
		}
	}()

	size, err := vbs.Seek(fd, 0, io.SeekEnd)
	if err != nil {
		logger.Fatalf("seek %s: %s", name, err)
	}
	if _, err = vbs.Seek(fd, 0, io.SeekStart); err != nil {
		logger.Fatalf("seek %s: %s", name, err)
	}

	var out io.Writer = os.Stdout
	if limit := c.Int64("bwlimit"); limit > 0 {
		bps := limit << 20
		out = &limitedWriter{out, ratelimit.NewBucketWithRate(float64(bps), bps)}
	}

	progress, bar := utils.NewProgressBar(name, size, c.Bool("quiet"))
	buf := make([]byte, c.Int("buffer")<<20)
	var copied int64
	for copied < size {
		n, err := vbs.Read(fd, buf)
		if err != nil {
			logger.Fatalf("read %s: %s", name, err)
		}
		if n == 0 {
			logger.Warnf("short recording: got %d of %d bytes", copied, size)
			break
		}
		if _, err := out.Write(buf[:n]); err != nil {
			logger.Fatalf("write: %s", err)
		}
		copied += int64(n)
		bar.IncrBy(n)
	}
	bar.SetTotal(size, true)
	progress.Wait()
	return nil
}
