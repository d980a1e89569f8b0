package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/battwatch/battwatch/pkg/monitor"
	"github.com/battwatch/battwatch/pkg/powerinfo"
	"github.com/battwatch/battwatch/pkg/version"
)

type statusResponse struct {
	Source string            `json:"source"`
	Device *powerinfo.Device `json:"device,omitempty"`
	monitor.Status
	RecentWarnings []monitor.Warning `json:"recentWarnings"`
}

type thresholdsRequest struct {
	Discharge *[]int `json:"discharge,omitempty"`
	Charge    *[]int `json:"charge,omitempty"`
}

func (d *Daemon) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(d.log))
	router.GET("/status", d.getStatus)
	router.GET("/query", d.getQuery)
	router.POST("/notify-query", d.postNotifyQuery)
	router.PUT("/suppress", d.putSuppress)
	router.GET("/config", d.getConfig)
	router.PUT("/thresholds", d.putThresholds)
	router.GET("/events", d.streamEvents)
	router.GET("/version", getVersion)

	return router
}

func abort(c *gin.Context, code int, err error) {
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}

func (d *Daemon) getStatus(c *gin.Context) {
	st, err := d.status(c.Request.Context())
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}

	resp := statusResponse{
		Source:         d.conf.Source(),
		Status:         st,
		RecentWarnings: d.history.GetRecords(),
	}
	if src := d.currentSource(); src != nil {
		dev := src.Device()
		resp.Device = &dev
	}
	c.IndentedJSON(http.StatusOK, resp)
}

func (d *Daemon) getQuery(c *gin.Context) {
	info, err := d.query(c.Request.Context())
	if err != nil {
		abort(c, queryErrorCode(err), err)
		return
	}
	c.IndentedJSON(http.StatusOK, info)
}

func (d *Daemon) postNotifyQuery(c *gin.Context) {
	if err := d.notifyQuery(c.Request.Context()); err != nil {
		abort(c, queryErrorCode(err), err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "query notification sent")
}

func queryErrorCode(err error) int {
	if errors.Is(err, powerinfo.ErrNoDevice) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (d *Daemon) putSuppress(c *gin.Context) {
	disarmed, err := d.suppress(c.Request.Context())
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	c.IndentedJSON(http.StatusOK, disarmed)
}

func (d *Daemon) getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.conf.Raw())
}

func (d *Daemon) putThresholds(c *gin.Context) {
	var req thresholdsRequest
	if err := c.BindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if req.Discharge == nil && req.Charge == nil {
		abort(c, http.StatusBadRequest, errors.New("nothing to change, set discharge or charge"))
		return
	}
	for name, values := range map[string]*[]int{"discharge": req.Discharge, "charge": req.Charge} {
		if values == nil {
			continue
		}
		for _, v := range *values {
			if v < 0 || v > 100 {
				abort(c, http.StatusBadRequest, fmt.Errorf("%s threshold must be between 0 and 100, got %d", name, v))
				return
			}
		}
	}

	if req.Discharge != nil {
		d.conf.SetDischargeWarnValues(*req.Discharge)
	}
	if req.Charge != nil {
		d.conf.SetChargeWarnValues(*req.Charge)
	}
	if err := d.conf.Save(); err != nil {
		d.log.Errorf("saveConfig failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}

	if err := d.reconfigure(c.Request.Context()); err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}

	st, err := d.status(c.Request.Context())
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	d.log.WithFields(d.conf.LogrusFields()).Info("thresholds changed")
	c.IndentedJSON(http.StatusCreated, "thresholds updated: "+describeStatus(st))
}

func (d *Daemon) streamEvents(c *gin.Context) {
	ch := d.hub.Subscribe()
	defer d.hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
