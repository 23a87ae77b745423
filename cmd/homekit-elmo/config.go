package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/brutella/hap/characteristic"
	elmo "github.com/caarlos0/homekit-elmo"
	"golang.org/x/exp/slices"
)

type Config struct {
	Username     string        `env:"ELMO_USERNAME,notEmpty"`
	Password     string        `env:"ELMO_PASSWORD,notEmpty"`
	Code         string        `env:"ELMO_CODE,notEmpty"`
	System       string        `env:"ELMO_SYSTEM"            envDefault:"e-connect"`
	Domain       string        `env:"ELMO_DOMAIN"            envDefault:"default"`
	PollInterval time.Duration `env:"POLL_INTERVAL"          envDefault:"30s"`
	Timeout      time.Duration `env:"TIMEOUT"                envDefault:"15s"`
	HomeSectors  []int         `env:"HOME_SECTORS"`
	AwaySectors  []int         `env:"AWAY_SECTORS"`
	NightSectors []int         `env:"NIGHT_SECTORS"`
	Inputs       []int         `env:"INPUTS"`
	Name         string        `env:"NAME"                   envDefault:"Elmo Security System"`
	Address      string        `env:"LISTEN"                 envDefault:":9009"`
	Debug        bool          `env:"DEBUG"`
}

func (c Config) validate() error {
	if _, err := elmo.BaseURL(c.System); err != nil {
		return err
	}
	for name, sectors := range map[string][]int{
		"HOME_SECTORS":  c.HomeSectors,
		"AWAY_SECTORS":  c.AwaySectors,
		"NIGHT_SECTORS": c.NightSectors,
		"INPUTS":        c.Inputs,
	} {
		for _, n := range sectors {
			if n <= 0 {
				return fmt.Errorf("%s: invalid value %d: must be positive", name, n)
			}
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL: must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("TIMEOUT: must be positive")
	}
	return nil
}

func (c Config) String() string {
	return strings.Join([]string{
		fmt.Sprintf("home: %v", orAll(c.HomeSectors)),
		fmt.Sprintf("away: %v", orAll(c.AwaySectors)),
		fmt.Sprintf("night: %v", orAll(c.NightSectors)),
	}, "\n")
}

func orAll(sectors []int) any {
	if len(sectors) == 0 {
		return "all"
	}
	return sectors
}

// getAlarmState maps the armed sectors to a HomeKit state. Configured modes
// are matched exactly; otherwise everything armed means away and anything
// less means home.
func (c Config) getAlarmState(status elmo.Status) int {
	armed := status.ArmedSectors()
	if len(armed) == 0 {
		return characteristic.SecuritySystemCurrentStateDisarmed
	}

	switch {
	case sectorsMatch(armed, c.HomeSectors):
		return characteristic.SecuritySystemCurrentStateStayArm
	case sectorsMatch(armed, c.NightSectors):
		return characteristic.SecuritySystemCurrentStateNightArm
	case sectorsMatch(armed, c.AwaySectors):
		return characteristic.SecuritySystemCurrentStateAwayArm
	}

	log.Debug("armed sectors do not match any mode", "armed", armed)
	if len(armed) == len(status.Sectors) {
		return characteristic.SecuritySystemCurrentStateAwayArm
	}
	return characteristic.SecuritySystemCurrentStateStayArm
}

func sectorsMatch(armed, configured []int) bool {
	if len(configured) == 0 {
		return false
	}
	a := slices.Clone(armed)
	b := slices.Clone(configured)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// sectorsFor returns the sectors to arm for the given target state. Disarm
// always applies to every sector.
func (c Config) sectorsFor(target int) (arm bool, sectors []int, ok bool) {
	switch target {
	case characteristic.SecuritySystemTargetStateStayArm:
		return true, c.HomeSectors, true
	case characteristic.SecuritySystemTargetStateAwayArm:
		return true, c.AwaySectors, true
	case characteristic.SecuritySystemTargetStateNightArm:
		return true, c.NightSectors, true
	case characteristic.SecuritySystemTargetStateDisarm:
		return false, nil, true
	default:
		return false, nil, false
	}
}

func stateName(state int) string {
	switch state {
	case characteristic.SecuritySystemCurrentStateStayArm:
		return "armed (home)"
	case characteristic.SecuritySystemCurrentStateAwayArm:
		return "armed (away)"
	case characteristic.SecuritySystemCurrentStateNightArm:
		return "armed (night)"
	case characteristic.SecuritySystemCurrentStateDisarmed:
		return "disarmed"
	case characteristic.SecuritySystemCurrentStateAlarmTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}
