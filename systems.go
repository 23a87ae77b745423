package elmo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/homekit-elmo/econnect"
)

const (
	SystemEConnect = "e-connect"
	SystemMetronet = "metronet"
)

var ErrUnsupportedSystem = errors.New("unsupported system")

type unsupportedSystemError struct {
	system string
}

func (e unsupportedSystemError) Error() string {
	return "Sistema non supportato: " + e.system
}

func (e unsupportedSystemError) Unwrap() error {
	return ErrUnsupportedSystem
}

// BaseURL returns the cloud endpoint for the given system name.
func BaseURL(system string) (string, error) {
	switch system {
	case SystemEConnect:
		return econnect.ElmoEConnect, nil
	case SystemMetronet:
		return econnect.IESSMetronet, nil
	default:
		return "", unsupportedSystemError{system}
	}
}

// ParseSectors parses a comma separated list of sector numbers.
// An empty string means all sectors and yields nil.
func ParseSectors(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var sectors []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid sector %q: %w", part, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("invalid sector %q: must be positive", part)
		}
		sectors = append(sectors, n)
	}
	return sectors, nil
}
