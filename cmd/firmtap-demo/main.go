// firmtap-demo links an agent into a small host program, maps a few demo
// variables into an emulated address space, and bridges the wire protocol
// over UDP or a serial port so a host tool can poke at it.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jprue/firmtap/internal/agent"
	"github.com/jprue/firmtap/internal/bridge"
	"github.com/jprue/firmtap/internal/config"
	"github.com/jprue/firmtap/internal/logging"
	"github.com/jprue/firmtap/internal/memspace"
	"github.com/jprue/firmtap/internal/protocol"
)

var startedAt = time.Now()

func main() {
	var (
		configPath = flag.String("config", "", "path to demo config TOML")
		listen     = flag.String("listen", "", "UDP listen address (overrides config)")
		serialDev  = flag.String("serial", "", "serial device (overrides config)")
		baud       = flag.Int("baud", 115200, "serial baud rate")
		httpAddr   = flag.String("http", "", "status endpoint address (overrides config)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadDemoConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Listen = *listen
		cfg.Serial.Device = ""
	}
	if *serialDev != "" {
		cfg.Serial.Device = *serialDev
		cfg.Serial.Baud = *baud
		cfg.Listen = ""
	}
	if *httpAddr != "" {
		cfg.HTTP = *httpAddr
	}

	log := logging.New(cfg.Name)

	space, uptimeBuf, err := buildDemoSpace()
	if err != nil {
		log.Fatal().Err(err).Msg("demo memory map failed")
	}

	var softwareID [protocol.SoftwareIDLength]byte
	copy(softwareID[:], cfg.SoftwareID)

	agentCfg := agent.Config{
		BufferSize:  cfg.BufferSize,
		PointerSize: cfg.PointerSize,
		MaxBitrate:  cfg.MaxBitrate,
		SoftwareID:  softwareID,
		Memory:      space,
		UserCommand: echoCommand,
	}
	for _, r := range cfg.Forbidden {
		agentCfg.ForbiddenRanges = append(agentCfg.ForbiddenRanges, agent.Range(r.Start, r.End))
	}
	for _, r := range cfg.Readonly {
		agentCfg.ReadonlyRanges = append(agentCfg.ReadonlyRanges, agent.Range(r.Start, r.End))
	}

	a, err := agent.New(agentCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("agent config rejected")
	}

	link, err := openLink(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("transport open failed")
	}
	defer link.Close()

	pump := bridge.NewPump(link, a, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A live variable for the host tool to watch.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				binary.LittleEndian.PutUint64(uptimeBuf, uint64(time.Since(startedAt).Seconds()))
			}
		}
	}()

	if cfg.HTTP != "" {
		go serveStatus(cfg, pump, log)
	}

	log.Info().Str("listen", cfg.Listen).Str("serial", cfg.Serial.Device).Msg("bridge running")
	if err := pump.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("bridge stopped")
	}
	log.Info().Msg("shutdown")
}

func openLink(cfg config.DemoConfig) (bridge.Link, error) {
	if cfg.Serial.Device != "" {
		return bridge.OpenSerial(cfg.Serial.Device, cfg.Serial.Baud)
	}
	return bridge.ListenUDP(cfg.Listen)
}

// Demo region layout. Addresses are arbitrary but stable so host-side
// scripts can hardcode them.
const (
	countersBase = 0x1000
	textBase     = 0x2000
	uptimeBase   = 0x3000
	lockedBase   = 0x4000
)

// buildDemoSpace maps the variables the demo exposes: a counter block, a
// text buffer, the live uptime register and a locked block meant to be
// covered by a forbidden or readonly range.
func buildDemoSpace() (*memspace.Space, []byte, error) {
	space := memspace.New()

	counters := make([]byte, 32)
	for i := range counters {
		counters[i] = byte(i)
	}
	text := make([]byte, 64)
	copy(text, "hello from firmtap")
	uptime := make([]byte, 8)
	locked := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xDE, 0xAD, 0xBE, 0xEF}

	for _, m := range []struct {
		name string
		base uint64
		data []byte
	}{
		{"counters", countersBase, counters},
		{"text", textBase, text},
		{"uptime", uptimeBase, uptime},
		{"locked", lockedBase, locked},
	} {
		if err := space.Map(m.name, m.base, m.data); err != nil {
			return nil, nil, err
		}
	}
	return space, uptime, nil
}

// echoCommand is the demo user command: subfunction 1 echoes the request
// payload back.
func echoCommand(subfunction uint8, request []byte, response []byte) (int, protocol.ResponseCode) {
	if subfunction != 1 {
		return 0, protocol.CodeUnsupportedFeature
	}
	if len(request) > len(response) {
		return 0, protocol.CodeOverflow
	}
	return copy(response, request), protocol.CodeOK
}

func serveStatus(cfg config.DemoConfig, pump *bridge.Pump, log zerolog.Logger) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	r.GET("/health", func(c *gin.Context) {
		stats := pump.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(startedAt).String(),
			"service":   cfg.Name,
			"rx_bytes":  stats.RxBytes,
			"tx_bytes":  stats.TxBytes,
			"rx_resets": stats.RxResets,
		})
	})
	if err := r.Run(cfg.HTTP); err != nil {
		log.Error().Err(err).Msg("status endpoint stopped")
	}
}
