package econnect

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/exp/slices"
)

type Sector struct {
	ID       int    `json:"id"`
	Index    int    `json:"index"`
	Element  int    `json:"element"`
	Excluded bool   `json:"excluded"`
	Status   bool   `json:"status"`
	Name     string `json:"name"`
}

type Input struct {
	ID       int    `json:"id"`
	Index    int    `json:"index"`
	Element  int    `json:"element"`
	Excluded bool   `json:"excluded"`
	Status   bool   `json:"status"`
	Name     string `json:"name"`
}

// Alert is a single panel flag (anomaly, tamper, alarm memory...).
type Alert struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type element struct {
	ID      int  `json:"Id"`
	Index   int  `json:"Index"`
	Element int  `json:"Element"`
	InUse   bool `json:"InUse"`

	// sectors
	Active bool `json:"Active"`

	// inputs
	Alarm    bool `json:"Alarm"`
	Excluded bool `json:"Excluded"`
}

type description struct {
	Class       int    `json:"Class"`
	Index       int    `json:"Index"`
	Description string `json:"Description"`
}

// Sectors returns the sectors in use, ordered by element number.
func (c *Client) Sectors(ctx context.Context) ([]Sector, error) {
	c.log.Debug("query sectors")
	names, err := c.descriptions(ctx, classSector)
	if err != nil {
		return nil, fmt.Errorf("could not query sectors: %w", err)
	}

	var resp []element
	if err := c.post(ctx, pathAreas, url.Values{}, &resp); err != nil {
		return nil, fmt.Errorf("could not query sectors: %w", err)
	}

	sectors := []Sector{}
	for _, e := range resp {
		if !e.InUse {
			continue
		}
		sectors = append(sectors, Sector{
			ID:       e.ID,
			Index:    e.Index,
			Element:  e.Element,
			Excluded: e.Excluded,
			Status:   e.Active,
			Name:     nameFor(names, e.Index, "Sector", e.Element),
		})
	}
	slices.SortStableFunc(sectors, func(a, b Sector) int {
		return a.Element - b.Element
	})
	return sectors, nil
}

// Inputs returns the inputs in use, ordered by element number.
func (c *Client) Inputs(ctx context.Context) ([]Input, error) {
	c.log.Debug("query inputs")
	names, err := c.descriptions(ctx, classInput)
	if err != nil {
		return nil, fmt.Errorf("could not query inputs: %w", err)
	}

	var resp []element
	if err := c.post(ctx, pathInputs, url.Values{}, &resp); err != nil {
		return nil, fmt.Errorf("could not query inputs: %w", err)
	}

	inputs := []Input{}
	for _, e := range resp {
		if !e.InUse {
			continue
		}
		inputs = append(inputs, Input{
			ID:       e.ID,
			Index:    e.Index,
			Element:  e.Element,
			Excluded: e.Excluded,
			Status:   e.Alarm,
			Name:     nameFor(names, e.Index, "Input", e.Element),
		})
	}
	slices.SortStableFunc(inputs, func(a, b Input) int {
		return a.Element - b.Element
	})
	return inputs, nil
}

// Alerts returns the panel flags sorted by name. Nested objects are
// flattened with a dot separator.
func (c *Client) Alerts(ctx context.Context) ([]Alert, error) {
	c.log.Debug("query alerts")
	var resp map[string]any
	if err := c.post(ctx, pathStatusAdv, url.Values{}, &resp); err != nil {
		return nil, fmt.Errorf("could not query alerts: %w", err)
	}

	flags := map[string]bool{}
	flatten("", resp, flags)

	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	slices.Sort(names)

	alerts := make([]Alert, 0, len(names))
	for i, name := range names {
		alerts = append(alerts, Alert{
			Index:  i,
			Name:   name,
			Active: flags[name],
		})
	}
	return alerts, nil
}

func flatten(prefix string, m map[string]any, into map[string]bool) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case bool:
			into[key] = v
		case float64:
			into[key] = v > 0
		case map[string]any:
			flatten(key, v, into)
		}
	}
}

func (c *Client) descriptions(ctx context.Context, class int) (map[int]string, error) {
	var resp []description
	if err := c.post(ctx, pathStrings, url.Values{}, &resp); err != nil {
		return nil, err
	}
	names := map[int]string{}
	for _, d := range resp {
		if d.Class != class {
			continue
		}
		names[d.Index] = d.Description
	}
	return names, nil
}

func nameFor(names map[int]string, index int, kind string, element int) string {
	if n := names[index]; n != "" {
		return n
	}
	return fmt.Sprintf("%s %d", kind, element)
}
