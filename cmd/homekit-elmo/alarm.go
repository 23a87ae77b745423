package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	elmo "github.com/caarlos0/homekit-elmo"
)

// Executor authenticates and runs fn with a fresh session.
type Executor = func(fn func(ctx context.Context, c *elmo.Commander, sess elmo.Session) elmo.Result) elmo.Result

const repollAfter = 3 * time.Second

type SecuritySystem struct {
	*accessory.A
	SecuritySystem *service.SecuritySystem
	Fault          *characteristic.StatusFault

	cfg     Config
	execute Executor
	poll    func()
	repoll  time.Duration
	busy    sync.Mutex
}

func NewSecuritySystem(info accessory.Info, cfg Config, execute Executor, poll func()) *SecuritySystem {
	a := &SecuritySystem{
		cfg:     cfg,
		execute: execute,
		poll:    poll,
		repoll:  repollAfter,
	}
	a.A = accessory.New(info, accessory.TypeSecuritySystem)

	a.SecuritySystem = service.NewSecuritySystem()
	a.AddS(a.SecuritySystem.S)

	a.Fault = characteristic.NewStatusFault()
	a.SecuritySystem.AddC(a.Fault.C)

	a.SecuritySystem.SecuritySystemTargetState.SetValueRequestFunc = a.updateHandler

	return a
}

func (a *SecuritySystem) Update(status elmo.Status) {
	state := a.cfg.getAlarmState(status)
	armStateGauge.Set(float64(state))
	for _, sector := range status.Sectors {
		sectorArmedGauge.WithLabelValues(sector.Name).Set(boolToFloat(sector.Status))
	}

	if current := a.SecuritySystem.SecuritySystemCurrentState.Value(); current != state {
		log.Info("state changed", "from", stateName(current), "to", stateName(state))
		_ = a.SecuritySystem.SecuritySystemCurrentState.SetValue(state)
		_ = a.SecuritySystem.SecuritySystemTargetState.SetValue(state)
	}

	active := len(status.ActiveAlerts())
	activeAlertsGauge.Set(float64(active))
	if v := boolToInt(active > 0); a.Fault.Value() != v {
		_ = a.Fault.SetValue(v)
		log.Info("alarm status", "active-alerts", active)
	}
}

func (a *SecuritySystem) updateHandler(
	v interface{},
	_ *http.Request,
) (response interface{}, code int) {
	target := v.(int)
	arm, sectors, ok := a.cfg.sectorsFor(target)
	if !ok {
		return nil, hap.JsonStatusInvalidValueInRequest
	}

	if !a.busy.TryLock() {
		log.Warn("another command is still running", "target", stateName(target))
		return nil, hap.JsonStatusResourceBusy
	}

	go func() {
		defer a.busy.Unlock()
		a.apply(target, arm, sectors)
	}()
	return nil, hap.JsonStatusSuccess
}

func (a *SecuritySystem) apply(target int, arm bool, sectors []int) {
	log.Info("changing state", "target", stateName(target), "sectors", orAll(sectors))
	res := a.execute(func(ctx context.Context, c *elmo.Commander, sess elmo.Session) elmo.Result {
		if arm {
			return c.Arm(ctx, sess, a.cfg.Code, sectors)
		}
		return c.Disarm(ctx, sess, a.cfg.Code, sectors)
	})
	commandCounter.WithLabelValues(commandName(arm), resultLabel(res)).Inc()

	if !res.Success {
		log.Error("could not change state", "target", stateName(target), "err", res.Message)
		_ = a.SecuritySystem.SecuritySystemTargetState.SetValue(
			a.SecuritySystem.SecuritySystemCurrentState.Value(),
		)
		return
	}

	log.Info("state changed", "target", stateName(target), "msg", res.Message)
	_ = a.SecuritySystem.SecuritySystemCurrentState.SetValue(target)
	time.AfterFunc(a.repoll, a.poll)
}

func commandName(arm bool) string {
	if arm {
		return "arm"
	}
	return "disarm"
}

func resultLabel(res elmo.Result) string {
	if res.Success {
		return "success"
	}
	return "failure"
}
