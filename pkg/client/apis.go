package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/kematusik/tomoscan/pkg/config"
	"github.com/kematusik/tomoscan/pkg/history"
	"github.com/kematusik/tomoscan/pkg/scan"
)

// Status mirrors the daemon's status response.
type Status struct {
	scan.Status
	RunID     string       `json:"runId,omitempty"`
	Collected int          `json:"collected"`
	LastRun   *history.Run `json:"lastRun,omitempty"`
}

// RunsPage is one page of the run history.
type RunsPage struct {
	Total int            `json:"total"`
	Runs  []*history.Run `json:"runs"`
}

// Schedule mirrors the daemon's schedule response.
type Schedule struct {
	Cron    string     `json:"cron,omitempty"`
	Preset  string     `json:"preset,omitempty"`
	Active  bool       `json:"active"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

// PVValue is one named value read from the instrument.
type PVValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type startScanRequest struct {
	Preset string `json:"preset,omitempty"`
}

type startScanResponse struct {
	RunID string `json:"runId"`
}

type setScheduleRequest struct {
	Cron   string `json:"cron"`
	Preset string `json:"preset,omitempty"`
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

// StartScan launches a scan run and returns its ID. preset may be
// empty to scan with whatever settings are on the records.
func (c *Client) StartScan(preset string) (string, error) {
	payload, err := json.Marshal(startScanRequest{Preset: preset})
	if err != nil {
		return "", err
	}

	ret, err := c.Put("/scan", string(payload))
	if err != nil {
		return "", err
	}

	var resp startScanResponse
	if err := json.Unmarshal([]byte(ret), &resp); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal scan response")
	}

	return resp.RunID, nil
}

func (c *Client) AbortScan() (string, error) {
	return c.Delete("/scan")
}

// GetPlan previews the acquisition plan the current settings produce.
func (c *Client) GetPlan() (*scan.Plan, error) {
	ret, err := c.Get("/plan")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get scan plan")
	}

	var plan scan.Plan
	if err := json.Unmarshal([]byte(ret), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan plan: %w", err)
	}

	return &plan, nil
}

// GetFrameTime returns the estimated seconds per frame.
func (c *Client) GetFrameTime() (float64, error) {
	ret, err := c.Get("/frame-time")
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get frame time")
	}

	t, err := strconv.ParseFloat(strings.TrimSpace(ret), 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to parse frame time")
	}

	return t, nil
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

func (c *Client) SetAllowOverwrite(enabled bool) (string, error) {
	return c.Put("/allow-overwrite", strconv.FormatBool(enabled))
}

func (c *Client) SetReturnToStart(enabled bool) (string, error) {
	return c.Put("/return-to-start", strconv.FormatBool(enabled))
}

func (c *Client) SetFrameTags(tags scan.TagMap) (string, error) {
	payload, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return c.Put("/frame-tags", string(payload))
}

func (c *Client) GetRuns(limit, offset int) (*RunsPage, error) {
	ret, err := c.Get(fmt.Sprintf("/runs?limit=%d&offset=%d", limit, offset))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to list runs")
	}

	var page RunsPage
	if err := json.Unmarshal([]byte(ret), &page); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal run list")
	}

	return &page, nil
}

func (c *Client) GetRun(id string) (*history.Run, error) {
	ret, err := c.Get("/runs/" + id)
	if err != nil {
		return nil, err
	}

	var run history.Run
	if err := json.Unmarshal([]byte(ret), &run); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal run")
	}

	return &run, nil
}

func (c *Client) GetSchedule() (*Schedule, error) {
	ret, err := c.Get("/schedule")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get schedule")
	}

	var sch Schedule
	if err := json.Unmarshal([]byte(ret), &sch); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal schedule")
	}

	return &sch, nil
}

func (c *Client) SetSchedule(cronExpr, preset string) (string, error) {
	payload, err := json.Marshal(setScheduleRequest{Cron: cronExpr, Preset: preset})
	if err != nil {
		return "", err
	}
	return c.Put("/schedule", string(payload))
}

func (c *Client) DisableSchedule() (string, error) {
	return c.Delete("/schedule")
}

func (c *Client) SkipSchedule() (string, error) {
	return c.Put("/schedule/skip", "")
}

func (c *Client) PostponeSchedule(d time.Duration) (string, error) {
	payload, err := json.Marshal(d.String())
	if err != nil {
		return "", err
	}
	return c.Put("/schedule/postpone", string(payload))
}

func (c *Client) GetPV(name string) (*PVValue, error) {
	ret, err := c.Get("/pv/" + name)
	if err != nil {
		return nil, err
	}

	var v PVValue
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal value")
	}

	return &v, nil
}

func (c *Client) PutPV(name string, value any) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return c.Put("/pv/"+name, string(payload))
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	// Remove "" around JSON string. I don't want to use a JSON decoder just for this.
	ret = strings.TrimSpace(ret)
	ret = ret[1 : len(ret)-1] // remove the surrounding quotes
	return ret, nil
}
