// Command quantum-echo is a minimal reliable-sequenced echo server and
// client built on internal/quantum/netpipe, demonstrating the window,
// ack, and RTT-adaptive resend machinery against real loopback UDP.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aetherflow/quantumcore/internal/quantum/config"
	"github.com/aetherflow/quantumcore/internal/quantum/metrics"
	"github.com/aetherflow/quantumcore/internal/quantum/netpipe"
)

var (
	mode       = flag.String("mode", "server", "server or client")
	addr       = flag.String("addr", ":9090", "address to listen on or dial")
	configFile = flag.String("f", "", "YAML config file; defaults used if empty")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	switch *mode {
	case "server":
		runServer(cfg, logger)
	case "client":
		runClient(cfg, logger)
	default:
		logger.Fatal("unknown -mode, expected server or client", zap.String("mode", *mode))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("config file not found, using defaults")
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func serveMetrics(cfg *config.Config, reg *prometheus.Registry, logger *zap.Logger) {
	if !cfg.Metrics.Enable {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	listenAddr := fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port)
	go func() {
		if err := http.ListenAndServe(listenAddr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", listenAddr), zap.String("path", cfg.Metrics.Path))
}

func runServer(cfg *config.Config, logger *zap.Logger) {
	conn, err := netpipe.Listen("udp", *addr, cfg, logger)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}
	defer conn.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	serveMetrics(cfg, reg, logger)

	logger.Info("quantum-echo server started", zap.String("id", conn.ID().String()), zap.String("addr", *addr))

	go sampleMetrics(conn, m)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	messageCount := 0
	errCh := make(chan error, 1)
	go func() {
		for {
			data, err := conn.Receive()
			if err != nil {
				errCh <- err
				return
			}
			messageCount++
			response := fmt.Sprintf("echo %d: %s", messageCount, string(data))
			if err := conn.Send([]byte(response)); err != nil {
				logger.Warn("send failed", zap.Error(err))
			}
			if messageCount%10 == 0 {
				stats := conn.Statistics()
				logger.Info("statistics",
					zap.Int("messages", messageCount),
					zap.Uint64("packets_sent", stats.PacketsSent),
					zap.Uint64("packets_resent", stats.PacketsResent),
					zap.Uint64("packets_duplicated", stats.PacketsDuplicated))
			}
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("receive loop stopped", zap.Error(err))
	case sig := <-sigCh:
		logger.Info("received signal", zap.String("signal", sig.String()))
	}
}

func runClient(cfg *config.Config, logger *zap.Logger) {
	conn, err := netpipe.Dial("udp", *addr, cfg, logger)
	if err != nil {
		logger.Fatal("failed to dial", zap.Error(err))
	}
	defer conn.Close()

	logger.Info("quantum-echo client started", zap.String("id", conn.ID().String()), zap.String("server", *addr))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			data, err := conn.Receive()
			if err != nil {
				return
			}
			logger.Info("received", zap.String("payload", string(data)))
		}
	}()

	i := 0
	for {
		select {
		case <-ticker.C:
			i++
			msg := fmt.Sprintf("ping %d", i)
			if err := conn.Send([]byte(msg)); err != nil {
				logger.Warn("send failed", zap.Error(err))
			}
		case sig := <-sigCh:
			logger.Info("received signal", zap.String("signal", sig.String()))
			return
		}
	}
}

func sampleMetrics(conn *netpipe.Conn, m *metrics.Metrics) {
	var prev = conn.Statistics()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		cur := conn.Statistics()
		m.Observe(prev, cur, conn.RTTInfo())
		prev = cur
	}
}
