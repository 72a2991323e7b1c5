package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/netlog/internal/models"
	"github.com/zulandar/netlog/internal/netlog"
	"github.com/zulandar/netlog/internal/policy"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, s *server) {
	router.GET("/healthz", handleHealth(s))

	api := router.Group("/api")
	api.GET("/sessions", handleSessionList(s))
	api.POST("/sessions", handleSessionCreate(s))
	api.GET("/sessions/:id", handleSessionDetail(s))
	api.PATCH("/sessions/:id", handleSessionUpdate(s))

	api.GET("/sessions/:id/records", handleRecordList(s))
	api.POST("/sessions/:id/records", handleRecordCreate(s))
	api.PUT("/sessions/:id/records/:recordID", handleRecordUpdate(s))
	api.DELETE("/sessions/:id/records/:recordID", handleRecordDelete(s))

	// Live record changes.
	api.GET("/sessions/:id/events", handleEvents(s))
	api.GET("/sessions/:id/ws", handleWebSocket(s))
}

// sessionView is a session plus its expiry state at response time.
type sessionView struct {
	models.Session
	ExpiresAt time.Time `json:"expiresAt"`
	Expired   bool      `json:"expired"`
	Remaining string    `json:"remaining"`
}

func (s *server) view(sess models.Session) sessionView {
	now := s.now()
	return sessionView{
		Session:   sess,
		ExpiresAt: policy.ExpiresAt(sess.SessionTime),
		Expired:   policy.IsExpired(sess.SessionTime, now),
		Remaining: policy.FormatRemaining(policy.Remaining(sess.SessionTime, now)),
	}
}

type createSessionRequest struct {
	ControllerID        string     `json:"controllerId"`
	ControllerName      string     `json:"controllerName"`
	ControllerEquipment string     `json:"controllerEquipment"`
	ControllerAntenna   string     `json:"controllerAntenna"`
	ControllerQTH       string     `json:"controllerQth"`
	SessionTime         *time.Time `json:"sessionTime"`
}

type updateSessionRequest struct {
	ControllerName      string `json:"controllerName"`
	ControllerEquipment string `json:"controllerEquipment"`
	ControllerAntenna   string `json:"controllerAntenna"`
	ControllerQTH       string `json:"controllerQth"`
}

type recordRequest struct {
	Callsign  string `json:"callsign"`
	QTH       string `json:"qth"`
	Equipment string `json:"equipment"`
	Antenna   string `json:"antenna"`
	Power     string `json:"power"`
	Signal    string `json:"signal"`
	Report    string `json:"report"`
	Remarks   string `json:"remarks"`
}

func (r recordRequest) fields() netlog.RecordFields {
	return netlog.RecordFields{
		Callsign:  r.Callsign,
		QTH:       r.QTH,
		Equipment: r.Equipment,
		Antenna:   r.Antenna,
		Power:     r.Power,
		Signal:    r.Signal,
		Report:    r.Report,
		Remarks:   r.Remarks,
	}
}

func handleHealth(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"streams": s.hub.Sessions(),
		})
	}
}

func handleSessionList(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := netlog.SessionFilter{ControllerID: c.Query("controller")}
		if raw := c.Query("active"); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				badRequest(c, "active must be a boolean")
				return
			}
			filter.ActiveOnly = active
		}
		sessions, err := s.manager.ListSessions(c.Request.Context(), filter)
		if err != nil {
			writeError(c, err)
			return
		}
		views := make([]sessionView, 0, len(sessions))
		for _, sess := range sessions {
			views = append(views, s.view(sess))
		}
		c.JSON(http.StatusOK, views)
	}
}

func handleSessionCreate(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid session body: "+err.Error())
			return
		}
		spec := netlog.SessionSpec{
			ControllerID:        req.ControllerID,
			ControllerName:      req.ControllerName,
			ControllerEquipment: req.ControllerEquipment,
			ControllerAntenna:   req.ControllerAntenna,
			ControllerQTH:       req.ControllerQTH,
		}
		if spec.ControllerID == "" {
			spec.ControllerID = s.actor(c).ID
		}
		if req.SessionTime != nil {
			spec.SessionTime = *req.SessionTime
		}
		sess, err := s.manager.CreateSession(c.Request.Context(), spec)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, s.view(*sess))
	}
}

func handleSessionDetail(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.manager.GetSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.view(*sess))
	}
}

func handleSessionUpdate(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid session body: "+err.Error())
			return
		}
		sess, err := s.manager.UpdateSession(c.Request.Context(), c.Param("id"), s.actor(c), netlog.SessionEdit{
			ControllerName:      req.ControllerName,
			ControllerEquipment: req.ControllerEquipment,
			ControllerAntenna:   req.ControllerAntenna,
			ControllerQTH:       req.ControllerQTH,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.view(*sess))
	}
}

func handleRecordList(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := s.manager.GetRecords(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if records == nil {
			records = []models.Record{}
		}
		c.JSON(http.StatusOK, records)
	}
}

func handleRecordCreate(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid record body: "+err.Error())
			return
		}
		r, err := s.manager.CreateRecord(c.Request.Context(), c.Param("id"), s.actor(c), req.fields())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func handleRecordUpdate(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid record body: "+err.Error())
			return
		}
		r, err := s.manager.UpdateRecord(c.Request.Context(), c.Param("id"), c.Param("recordID"), s.actor(c), req.fields())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleRecordDelete(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.manager.DeleteRecord(c.Request.Context(), c.Param("id"), c.Param("recordID"), s.actor(c)); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
