// Package daemon implements the host bridge lifecycle: it loads the
// configuration, brings up logging, metrics, the key ring and the capture
// sink, then reads the serial link until the stream ends or a shutdown
// signal arrives.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/zbridge/internal/capture"
	"firestige.xyz/zbridge/internal/config"
	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/host"
	"firestige.xyz/zbridge/internal/log"
	"firestige.xyz/zbridge/internal/metrics"
	"firestige.xyz/zbridge/internal/security"
	"firestige.xyz/zbridge/internal/serial"
)

// OpenError reports that the serial port could not be opened.
type OpenError struct {
	Port string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("Failed to open %q. Error: %v", e.Port, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// OpenFunc opens the link to the device.
type OpenFunc func(name string, opts serial.Options) (io.ReadCloser, error)

// Options configures a Daemon.
type Options struct {
	// Out receives the packet report; defaults to os.Stdout.
	Out io.Writer
	// Open defaults to serial.Open.
	Open OpenFunc
	// Config is applied to every load of the configuration file.
	Config []config.Option
}

// Daemon runs one host bridge.
type Daemon struct {
	mu         sync.Mutex
	config     *config.Config
	configPath string
	configOpts []config.Option

	port string
	out  io.Writer
	open OpenFunc

	keys          *security.KeyRing
	link          io.ReadCloser
	sink          *capture.Writer
	metricsServer *metrics.Server // nil if metrics disabled

	ctx     context.Context
	cancel  context.CancelFunc
	sigChan chan os.Signal
}

// New loads the configuration and prepares a daemon reading port.
func New(configPath, port string, opts Options) (*Daemon, error) {
	cfg, err := config.Load(configPath, opts.Config...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Open == nil {
		opts.Open = func(name string, so serial.Options) (io.ReadCloser, error) {
			return serial.Open(name, so)
		}
	}

	d := &Daemon{
		config:     cfg,
		configPath: configPath,
		configOpts: opts.Config,
		port:       port,
		out:        opts.Out,
		open:       opts.Open,
		keys:       security.NewKeyRing(nil),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Config returns the configuration in effect.
func (d *Daemon) Config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// Keys returns the key ring loaded from the configuration.
func (d *Daemon) Keys() *security.KeyRing {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys
}

// Start initializes logging, keys, metrics and the capture sink, then opens
// the serial port. A port that cannot be opened is an *OpenError.
func (d *Daemon) Start() error {
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	d.loadKeys(d.keys)

	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	if err := d.openCapture(); err != nil {
		d.Stop()
		return err
	}

	link, err := d.open(d.port, serial.Options{
		BaudRate:    d.config.Serial.BaudRate,
		ReadTimeout: d.config.Serial.ReadTimeout,
	})
	if err != nil {
		d.Stop()
		return &OpenError{Port: d.port, Err: err}
	}
	d.link = link

	log.GetLogger().WithField(core.FieldPort, d.port).
		WithField("serial.baud", d.config.Serial.BaudRate).
		Info("serial port opened")
	return nil
}

// Run reads packets until the link reports the end of the stream, the
// reassembly buffer is exhausted, or SIGINT/SIGTERM arrives. SIGHUP reloads
// the configuration.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer d.Stop()

	go func() {
		for {
			select {
			case <-d.ctx.Done():
				return
			case sig := <-d.sigChan:
				if sig == syscall.SIGHUP {
					if err := d.Reload(); err != nil {
						log.GetLogger().WithError(err).Error("failed to reload config")
					}
					continue
				}
				log.GetLogger().WithField("signal", sig.String()).Info("received shutdown signal")
				d.cancel()
				return
			}
		}
	}()

	fmt.Fprintf(d.out, "Read packets over %s\n", d.port)

	var opts host.PrinterOptions
	if d.sink != nil {
		opts.Sink = d.sink
	}
	serialCfg := d.Config().Serial
	bridge := host.NewBridge(d.link, host.Config{
		BufferSize:  serialCfg.BufferSize,
		MessageSize: serialCfg.MessageSize,
		ChunkSize:   serialCfg.ChunkSize,
	}, host.NewPrinter(d.out, opts))

	err := bridge.Run(d.ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Reload re-reads the configuration file. The log settings and the key ring
// take effect immediately; serial, capture and metrics settings need a
// restart.
func (d *Daemon) Reload() error {
	cfg, err := config.Load(d.configPath, d.configOpts...)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}
	d.mu.Lock()
	d.config = cfg
	d.mu.Unlock()

	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to reinitialize logging: %w", err)
	}
	keys := security.NewKeyRing(nil)
	d.loadKeys(keys)
	d.mu.Lock()
	d.keys = keys
	d.mu.Unlock()
	log.GetLogger().WithField("keys", keys.Len()).Info("configuration reloaded")
	return nil
}

// Stop releases everything Start acquired. It is safe to call more than once.
func (d *Daemon) Stop() {
	d.cancel()
	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	logger := log.GetLogger()
	if d.link != nil {
		if err := d.link.Close(); err != nil {
			logger.WithError(err).Warn("error closing serial port")
		}
		d.link = nil
	}
	if d.sink != nil {
		logger.WithField("packets", d.sink.Count()).Info("capture closed")
		if err := d.sink.Close(); err != nil {
			logger.WithError(err).Warn("error closing capture file")
		}
		d.sink = nil
	}
	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("error stopping metrics server")
		}
		d.metricsServer = nil
	}
	_ = log.Flush()
}

func (d *Daemon) initLogging() error {
	return log.Init(d.Config().Log)
}

// loadKeys registers every configured key as "User {index}". Keys that do
// not parse are skipped; the index still advances.
func (d *Daemon) loadKeys(keys *security.KeyRing) {
	logger := log.GetLogger()
	for _, err := range keys.AddStrings(d.Config().Keys) {
		logger.WithError(err).Debug("skipping key")
	}
	for _, e := range keys.Entries() {
		logger.WithField("key.name", e.Name).Debug("key loaded")
	}
}

func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		return nil
	}
	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	return d.metricsServer.Start(d.ctx)
}

func (d *Daemon) openCapture() error {
	c := d.config.Capture
	if c.PcapFile == "" {
		return nil
	}
	w, err := capture.Create(c.PcapFile, capture.Options{SynthesizeFCS: c.SynthesizeFCS, SnapLen: c.SnapLen})
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	d.sink = w
	log.GetLogger().WithField("path", c.PcapFile).WithField("link_type", int(w.LinkType())).Info("capturing packets")
	return nil
}

// MetricsAddr returns the bound metrics address, or "" when metrics are
// disabled.
func (d *Daemon) MetricsAddr() string {
	if d.metricsServer == nil {
		return ""
	}
	return d.metricsServer.Addr()
}
