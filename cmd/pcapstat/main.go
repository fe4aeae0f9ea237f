// Command pcapstat summarizes a packet capture into a JSON traffic report.
package main

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pcaplab/flowtrack"
	"github.com/pcaplab/flowtrack/capture"
	"github.com/pcaplab/flowtrack/logging"
)

var logger = logging.New("main")

func main() {
	app := &cli.App{
		Name:      "pcapstat",
		Usage:     "aggregate per-flow traffic statistics from a capture file",
		ArgsUsage: "CAPTURE-FILE",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:  "out",
				Usage: "output report JSON file",
			},
			&cli.DurationFlag{
				Name:  "epoch",
				Value: flowtrack.DefaultOptions.EpochDuration,
				Usage: "reporting epoch duration",
			},
			&cli.IntFlag{
				Name:  "max-flows",
				Value: flowtrack.DefaultOptions.MaxFlows,
				Usage: "live flow tracker capacity",
			},
			&cli.DurationFlag{
				Name:  "max-age",
				Value: flowtrack.DefaultOptions.FlowMaxAge,
				Usage: "idle time before a flow expires",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal("pcapstat failed", zap.Error(err))
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one capture file argument")
	}
	path := c.Args().First()
	if _, err := os.Stat(path); err != nil {
		return err
	}

	r, err := capture.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	options := flowtrack.DefaultOptions
	options.EpochDuration = c.Duration("epoch")
	options.MaxFlows = c.Int("max-flows")
	options.FlowMaxAge = c.Duration("max-age")

	stats, err := flowtrack.NewStats(options)
	if err != nil {
		return err
	}

	started := time.Now()
	for {
		pkt, err := r.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		stats.Feed(pkt)
	}

	report := stats.Report()
	logger.Info("capture processed",
		zap.Uint64("totalPkts", report.TotalPkts),
		zap.Uint64("tcpudpPkts", report.TCPUDPPkts),
		zap.Uint64("totalFlows", report.TotalFlows),
		zap.Uint64("totalSymmFlows", report.TotalSymmFlows),
		zap.Duration("elapsed", time.Since(started)))

	if out := c.Path("out"); out != "" {
		logger.Info("dumping report", zap.String("path", out))
		return report.WriteFile(out)
	}
	return nil
}
