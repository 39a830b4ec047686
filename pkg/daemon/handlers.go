package daemon

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kematusik/tomoscan/pkg/config"
	"github.com/kematusik/tomoscan/pkg/history"
	"github.com/kematusik/tomoscan/pkg/preset"
	"github.com/kematusik/tomoscan/pkg/pv"
	"github.com/kematusik/tomoscan/pkg/scan"
	"github.com/kematusik/tomoscan/pkg/version"
)

type statusResponse struct {
	scan.Status
	RunID     string       `json:"runId,omitempty"`
	Collected int          `json:"collected"`
	LastRun   *history.Run `json:"lastRun,omitempty"`
}

func getStatus(c *gin.Context) {
	resp := statusResponse{
		Status:    mgr.Status(),
		RunID:     mgr.RunID(),
		Collected: mgr.Collected(),
	}

	if last, err := hist.GetLastRun(); err == nil {
		resp.LastRun = last
	} else if !errors.Is(err, sql.ErrNoRows) {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, resp)
}

type startScanRequest struct {
	Preset string `json:"preset"`
}

type startScanResponse struct {
	RunID string `json:"runId"`
}

func startScan(c *gin.Context) {
	var req startScanRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	id, err := mgr.Start(req.Preset)
	if err != nil {
		if errors.Is(err, scan.ErrScanInProgress) {
			c.IndentedJSON(http.StatusConflict, err.Error())
			_ = c.AbortWithError(http.StatusConflict, err)
			return
		}
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	logrus.Infof("scan %s started over api", id)

	c.IndentedJSON(http.StatusCreated, startScanResponse{RunID: id})
}

func abortScan(c *gin.Context) {
	if err := mgr.Abort(); err != nil {
		if errors.Is(err, scan.ErrNoScanRunning) {
			c.IndentedJSON(http.StatusConflict, err.Error())
			_ = c.AbortWithError(http.StatusConflict, err)
			return
		}
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, "aborting")
}

func getPlan(c *gin.Context) {
	plan, err := mgr.Preview()
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	c.IndentedJSON(http.StatusOK, plan)
}

func getFrameTime(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, mgr.FrameTime())
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func setAllowOverwrite(c *gin.Context) {
	var a bool
	if err := c.BindJSON(&a); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetAllowOverwrite(a)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set allow overwrite to %t", a)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func setReturnToStart(c *gin.Context) {
	var r bool
	if err := c.BindJSON(&r); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetReturnToStart(r)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set return to start to %t", r)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func setFrameTags(c *gin.Context) {
	var tags scan.TagMap
	if err := c.BindJSON(&tags); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetFrameTags(tags)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set frame tags to %+v", tags)

	c.IndentedJSON(http.StatusCreated, "ok")
}

type runsResponse struct {
	Total int            `json:"total"`
	Runs  []*history.Run `json:"runs"`
}

func getRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.IndentedJSON(http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.IndentedJSON(http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := hist.ListRuns(limit, offset)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}

	total, err := hist.CountRuns()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, runsResponse{Total: total, Runs: runs})
}

func getRun(c *gin.Context) {
	run, err := hist.GetRun(c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.IndentedJSON(http.StatusNotFound, "no such run")
			return
		}
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, run)
}

type scheduleResponse struct {
	Cron    string     `json:"cron,omitempty"`
	Preset  string     `json:"preset,omitempty"`
	Active  bool       `json:"active"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

func getSchedule(c *gin.Context) {
	resp := scheduleResponse{
		Cron:   conf.ScheduleCron(),
		Preset: conf.SchedulePreset(),
	}

	next, running := sched.Status()
	resp.Active = running && resp.Cron != ""
	if !next.IsZero() {
		resp.NextRun = &next
	}

	c.IndentedJSON(http.StatusOK, resp)
}

type setScheduleRequest struct {
	Cron   string `json:"cron"`
	Preset string `json:"preset"`
}

func setSchedule(c *gin.Context) {
	var req setScheduleRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if req.Cron == "" {
		err := fmt.Errorf("cron expression must not be empty; delete the schedule to disable it")
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if req.Preset != "" {
		if _, err := preset.Load(req.Preset); err != nil {
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
	}

	if err := sched.Schedule(req.Cron); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetScheduleCron(req.Cron)
	conf.SetSchedulePreset(req.Preset)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set scan schedule to %q (preset %q)", req.Cron, req.Preset)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func disableSchedule(c *gin.Context) {
	sched.Disable()

	conf.SetScheduleCron("")
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Info("scan schedule disabled")

	c.IndentedJSON(http.StatusOK, "ok")
}

func skipSchedule(c *gin.Context) {
	if err := sched.Skip(); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	next, _ := sched.Status()
	msg := fmt.Sprintf("skipped; next scan at %s", next.Format(time.DateTime))
	logrus.Info(msg)

	c.IndentedJSON(http.StatusCreated, msg)
}

func postponeSchedule(c *gin.Context) {
	var ds string
	if err := c.BindJSON(&ds); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	d, err := time.ParseDuration(ds)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := sched.Postpone(d); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	logrus.Infof("postponed next scheduled scan by %s", d)

	c.IndentedJSON(http.StatusCreated, "ok")
}

type pvResponse struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

func getPV(c *gin.Context) {
	name := c.Param("name")

	value, err := pvs.Get(name)
	if err != nil {
		if errors.Is(err, pv.ErrUnknown) {
			c.IndentedJSON(http.StatusNotFound, err.Error())
			return
		}
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, pvResponse{Name: name, Value: value})
}

func putPV(c *gin.Context) {
	name := c.Param("name")

	var value any
	if err := c.BindJSON(&value); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := pvs.PutWait(name, value); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("wrote %v to %s over api", value, name)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
