package main

import (
	"fmt"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/service"
	elmo "github.com/caarlos0/homekit-elmo"
	"github.com/caarlos0/homekit-elmo/econnect"
)

type InputSensors []*InputSensor

func (sensors InputSensors) Update(status elmo.Status) {
	for _, sensor := range sensors {
		input, ok := findInput(status.Inputs, sensor.Element)
		if !ok {
			log.Warn("input is gone", "input", sensor.Element)
			continue
		}
		sensor.Update(input)
	}
}

type InputSensor struct {
	*accessory.A
	Element int
	Contact *service.ContactSensor
}

func newInputSensor(info accessory.Info, element int) *InputSensor {
	a := InputSensor{Element: element}
	a.A = accessory.New(info, accessory.TypeSensor)

	a.Contact = service.NewContactSensor()
	a.AddS(a.Contact.S)

	return &a
}

func (sensor *InputSensor) Update(input econnect.Input) {
	openGauge.WithLabelValues(sensor.Name()).Set(boolToFloat(input.Status))
	excludedGauge.WithLabelValues(sensor.Name()).Set(boolToFloat(input.Excluded))

	current := boolToInt(input.Status)
	if sensor.Contact.ContactSensorState.Value() == current {
		return
	}
	_ = sensor.Contact.ContactSensorState.SetValue(current)
	log.Info(
		"contact",
		"input", input.Element,
		"name", input.Name,
		"alarm", input.Status,
		"excluded", input.Excluded,
	)
}

func setupInputs(cfg Config, status elmo.Status) (InputSensors, error) {
	var sensors InputSensors
	for i, element := range cfg.Inputs {
		input, ok := findInput(status.Inputs, element)
		if !ok {
			return nil, fmt.Errorf("input %d is not in use", element)
		}
		a := newInputSensor(accessory.Info{
			Name:         input.Name,
			Manufacturer: manufacturer,
		}, element)
		a.Update(input)
		a.Id = uint64(100 + i)
		sensors = append(sensors, a)
	}
	return sensors, nil
}

func findInput(inputs []econnect.Input, element int) (econnect.Input, bool) {
	for _, input := range inputs {
		if input.Element == element {
			return input, true
		}
	}
	return econnect.Input{}, false
}
