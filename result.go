package elmo

import "github.com/caarlos0/homekit-elmo/econnect"

// Result is the outcome of a workflow, as printed by the CLI.
type Result struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Status  *Status `json:"status,omitempty"`
}

func ok(msg string) Result {
	return Result{Success: true, Message: msg}
}

func fail(msg string) Result {
	return Result{Message: msg}
}

// Status is a snapshot of the system taken at one point in time.
type Status struct {
	Sectors []econnect.Sector `json:"sectors"`
	Inputs  []econnect.Input  `json:"inputs"`
	Alerts  []econnect.Alert  `json:"alerts"`
}

func (s Status) ActiveAlerts() []econnect.Alert {
	var active []econnect.Alert
	for _, alert := range s.Alerts {
		if alert.Active {
			active = append(active, alert)
		}
	}
	return active
}

// ArmedSectors returns the element numbers of the armed sectors.
func (s Status) ArmedSectors() []int {
	armed := []int{}
	for _, sector := range s.Sectors {
		if sector.Status {
			armed = append(armed, sector.Element)
		}
	}
	return armed
}
