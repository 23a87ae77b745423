package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/caarlos0/env/v11"
	elmo "github.com/caarlos0/homekit-elmo"
	logp "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "homekit",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const manufacturer = "Elmo"

func main() {
	log.Info(
		"homekit-elmo",
		"version", version,
		"commit", commit,
		"date", date,
		"info", "Homekit bridge for Elmo e-Connect and IESS Metronet alarm systems",
	)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(
			"could not parse env",
			"err",
			strings.TrimPrefix(strings.ReplaceAll(err.Error(), "; ", "\n"), "env: ")+"\n",
		)
	}
	if err := cfg.validate(); err != nil {
		log.Fatal("invalid configuration", "err", err)
	}
	if cfg.Debug {
		log.SetLevel(logp.DebugLevel)
	}

	log.Info(
		"loading accessories",
		"system", cfg.System,
		"domain", cfg.Domain,
		"poll", cfg.PollInterval,
		"timeout", cfg.Timeout,
		"sectors", cfg.String(),
		"inputs", cfg.Inputs,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commander := elmo.New(log.WithPrefix("elmo"), elmo.WithRequestTimeout(cfg.Timeout))

	var clientLock sync.Mutex
	execute := func(fn func(ctx context.Context, c *elmo.Commander, sess elmo.Session) elmo.Result) elmo.Result {
		t := time.Now()
		clientLock.Lock()
		defer clientLock.Unlock()
		log.Debugf("got client lock after %s", time.Since(t))

		requestCounter.Inc()
		sess, res := commander.Authenticate(ctx, cfg.Username, cfg.Password, cfg.System, cfg.Domain)
		if res.Success {
			res = fn(ctx, commander, sess)
		}
		if !res.Success {
			requestErrorCounter.Inc()
		}
		return res
	}

	status := func() (elmo.Status, error) {
		res := execute(func(ctx context.Context, c *elmo.Commander, sess elmo.Session) elmo.Result {
			return c.Status(ctx, sess)
		})
		if !res.Success {
			return elmo.Status{}, errors.New(res.Message)
		}
		return *res.Status, nil
	}

	initial, err := status()
	if err != nil {
		log.Fatal("could not init accessories", "err", err)
	}
	log.Info(
		"got alarm system information",
		"sectors", len(initial.Sectors),
		"inputs", len(initial.Inputs),
		"armed", initial.ArmedSectors(),
	)

	bridge := accessory.NewBridge(accessory.Info{
		Name:         "Alarm Bridge",
		Manufacturer: manufacturer,
		Firmware:     version,
	})

	inputs, err := setupInputs(cfg, initial)
	if err != nil {
		log.Fatal("could not setup inputs", "err", err)
	}

	var alarm *SecuritySystem
	poll := func() {
		s, err := status()
		if err != nil {
			log.Error("could not get status", "err", err)
			return
		}
		alarm.Update(s)
		inputs.Update(s)
	}

	alarm = NewSecuritySystem(accessory.Info{
		Name:         cfg.Name,
		Manufacturer: manufacturer,
		Model:        cfg.System,
		Firmware:     version,
	}, cfg, execute, poll)
	alarm.Id = 2
	alarm.Update(initial)

	go func() {
		tick := time.NewTicker(cfg.PollInterval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				poll()
			}
		}
	}()

	fs := hap.NewFsStore("./db")

	server, err := hap.NewServer(fs, bridge.A, securityAccessories(alarm, inputs)...)
	if err != nil {
		log.Fatal("fail to create server", "error", err)
	}
	server.Addr = cfg.Address
	server.ServeMux().Handle("/metrics", promhttp.Handler())

	log.Info("starting server", "addr", server.Addr)
	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("failed to close server", "err", err)
	}
	log.Info("stopped server")
}

func securityAccessories(alarm *SecuritySystem, inputs InputSensors) []*accessory.A {
	result := []*accessory.A{alarm.A}
	for _, c := range inputs {
		result = append(result, c.A)
	}
	return result
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
