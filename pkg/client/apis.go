package client

import (
	"encoding/json"
	"fmt"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/battwatch/battwatch/pkg/config"
	"github.com/battwatch/battwatch/pkg/monitor"
	"github.com/battwatch/battwatch/pkg/powerinfo"
)

// Status is the daemon's view of the tracked battery.
type Status struct {
	Source string            `json:"source"`
	Device *powerinfo.Device `json:"device,omitempty"`
	monitor.Status
	RecentWarnings []monitor.Warning `json:"recentWarnings"`
}

// Thresholds changes one or both threshold sets. A nil set is left as is.
type Thresholds struct {
	Discharge *[]int `json:"discharge,omitempty"`
	Charge    *[]int `json:"charge,omitempty"`
}

func (c *Client) GetStatus() (*Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}

	var st Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal status")
	}
	return &st, nil
}

func (c *Client) Query() (*powerinfo.Info, error) {
	ret, err := c.Get("/query")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to query battery")
	}

	var info powerinfo.Info
	if err := json.Unmarshal([]byte(ret), &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal battery info: %w", err)
	}
	return &info, nil
}

func (c *Client) NotifyQuery() (string, error) {
	ret, err := c.Post("/notify-query", "")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to show battery notification")
	}
	return unquote(ret), nil
}

// Suppress reports whether a pending warning was disarmed.
func (c *Client) Suppress() (bool, error) {
	ret, err := c.Put("/suppress", "")
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to suppress warnings")
	}
	return parseBoolResponse(ret)
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) SetThresholds(t Thresholds) (string, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	ret, err := c.Put("/thresholds", string(payload))
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to set thresholds")
	}
	return unquote(ret), nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return unquote(ret), nil
}

func parseBoolResponse(resp string) (bool, error) {
	b, err := strconv.ParseBool(resp)
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to parse %q as bool", resp)
	}
	return b, nil
}

// unquote decodes a JSON string response, returning it unchanged when it
// is not one.
func unquote(resp string) string {
	var s string
	if err := json.Unmarshal([]byte(resp), &s); err != nil {
		return resp
	}
	return s
}
