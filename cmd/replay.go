package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/zbridge/internal/config"
	"firestige.xyz/zbridge/internal/device"
	"firestige.xyz/zbridge/internal/log"
	"firestige.xyz/zbridge/internal/queue"
	"firestige.xyz/zbridge/internal/radio/replay"
	"firestige.xyz/zbridge/internal/serial"
)

var replayCmd = &cobra.Command{
	Use:   "replay <pcap> <serial-device|->",
	Short: "Replay a pcap capture through an emulated listener device",
	Long: `Replay the IEEE 802.15.4 packets of a pcap capture as if a listener
device had received them: each packet passes through the device pipeline and
is written as a RadioReceive frame to the serial device, or to stdout for "-".

Pointing the output at one end of a virtual serial pair lets zbridge read the
other end without radio hardware.

Examples:
  zbridge replay capture.pcap /dev/pts/3
  zbridge replay capture.pcap - | xxd`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runReplayCommand(cmd, args[0], args[1])
	},
}

func init() {
	replayCmd.Flags().Int("baud", 115200, "serial baud rate")
	replayCmd.Flags().Int("lqi", 0xFF, "link quality reported for every packet")
	replayCmd.Flags().Bool("pace", false, "keep the capture's packet timing")
}

func runReplayCommand(cmd *cobra.Command, pcapPath, target string) {
	cfg, err := config.Load(configFile, configOptions(cmd)...)
	if err != nil {
		exitWithError("failed to load configuration", err)
	}
	// Frames may go to stdout, so the console log goes to stderr.
	logger, err := log.New(cfg.Log, os.Stderr)
	if err != nil {
		exitWithError("failed to initialize logging", err)
	}
	log.SetLogger(logger)

	var uart io.Writer = os.Stdout
	if target != "-" {
		conn, err := serial.Open(target, serial.Options{
			BaudRate:    cfg.Serial.BaudRate,
			ReadTimeout: cfg.Serial.ReadTimeout,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %q. Error: %v\n", target, err)
			os.Exit(1)
		}
		defer conn.Close()
		uart = conn
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := runReplay(ctx, cfg, pcapPath, uart)
	if err != nil {
		exitWithError("replay failed", err)
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"received": stats.Received.Load(),
		"sent":     stats.Sent.Load(),
		"dropped":  stats.Dropped.Load(),
		"errors":   stats.RadioErrors.Load(),
	}).Info("replay finished")
}

// runReplay plays the capture through a listener writing to uart and returns
// once every played packet has left the device queue.
func runReplay(ctx context.Context, cfg *config.Config, pcapPath string, uart io.Writer) (*device.Stats, error) {
	drv, err := replay.Open(pcapPath, replay.Options{
		LQI:  byte(cfg.Device.LQI),
		Pace: cfg.Device.Pace,
	})
	if err != nil {
		return nil, err
	}
	defer drv.Close()

	l, err := device.NewListener(device.ListenerConfig{
		Radio:        drv,
		Queue:        queue.New(cfg.Device.QueueSize),
		UART:         uart,
		IdleInterval: cfg.Device.IdleInterval,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	played, err := drv.Play(ctx)
	if err != nil {
		return l.Stats(), fmt.Errorf("after %d packets: %w", played, err)
	}

	tick := time.NewTicker(cfg.Device.IdleInterval)
	defer tick.Stop()
	for !l.Drained(uint64(played)) {
		select {
		case <-ctx.Done():
			return l.Stats(), ctx.Err()
		case <-tick.C:
		}
	}
	log.GetLogger().WithField("packets", played).Debug("capture replayed")
	return l.Stats(), nil
}
