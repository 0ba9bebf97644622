package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"options-trading-engine/internal/market"
	"options-trading-engine/internal/tradelog"
)

const dateLayout = "2006-01-02"

// handleHealth returns server liveness plus the tracked index list
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"indices": s.engine.Indices(),
		"time":    time.Now().Format(time.RFC3339),
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.authMgr.Enabled() {
		errorResponse(c, http.StatusNotFound, "authentication is disabled")
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := s.authMgr.Login(req.Username, req.Password)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	successResponse(c, gin.H{"token": token})
}

func (s *Server) handleIndices(c *gin.Context) {
	successResponse(c, s.engine.Indices())
}

// handleAnalysis returns the latest full cycle report for an index
func (s *Server) handleAnalysis(c *gin.Context) {
	index := market.ParseIndex(c.Param("index"))
	report := s.engine.LatestReport(index)
	if report == nil {
		errorResponse(c, http.StatusNotFound, "no analysis available yet for "+string(index))
		return
	}
	successResponse(c, report)
}

// handleDecision returns the latest fused decision for an index
func (s *Server) handleDecision(c *gin.Context) {
	index := market.ParseIndex(c.Param("index"))
	decision := s.engine.LatestDecision(index)
	if decision == nil {
		errorResponse(c, http.StatusNotFound, "no decision available yet for "+string(index))
		return
	}
	successResponse(c, decision)
}

// handleStrategies returns the latest strategy recommendations for an index
func (s *Server) handleStrategies(c *gin.Context) {
	index := market.ParseIndex(c.Param("index"))
	report := s.engine.LatestReport(index)
	if report == nil || report.Strategies == nil {
		errorResponse(c, http.StatusNotFound, "no strategy recommendations yet for "+string(index))
		return
	}
	successResponse(c, report.Strategies)
}

// handleTrades lists journal entries, narrowed by index, status or date range
func (s *Server) handleTrades(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		successResponse(c, s.journal.ByStatus(tradelog.Status(status)))
		return
	}
	if index := c.Query("index"); index != "" {
		successResponse(c, s.journal.ByIndex(market.ParseIndex(index)))
		return
	}
	if from := c.Query("from"); from != "" {
		start, err := time.Parse(dateLayout, from)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return
		}
		var end time.Time
		if to := c.Query("to"); to != "" {
			end, err = time.Parse(dateLayout, to)
			if err != nil {
				errorResponse(c, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
				return
			}
		}
		successResponse(c, s.journal.ByDateRange(start, end))
		return
	}
	successResponse(c, s.journal.All())
}

func (s *Server) handleTrade(c *gin.Context) {
	trade, ok := s.journal.Get(c.Param("id"))
	if !ok {
		errorResponse(c, http.StatusNotFound, "trade not found")
		return
	}
	successResponse(c, trade)
}

type closeTradeRequest struct {
	ExitPrice float64    `json:"exit_price" binding:"required"`
	ExitTime  *time.Time `json:"exit_time"`
}

// handleCloseTrade records an exit observation for an open trade
func (s *Server) handleCloseTrade(c *gin.Context) {
	var req closeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "exit_price is required")
		return
	}

	exitTime := time.Now()
	if req.ExitTime != nil {
		exitTime = *req.ExitTime
	}

	id := c.Param("id")
	if err := s.journal.Close(id, req.ExitPrice, exitTime); err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}

	trade, _ := s.journal.Get(id)
	if s.bus != nil && trade != nil {
		s.bus.PublishTradeClosed(trade.ID, string(trade.Index), trade.ExitPrice, trade.PnL)
	}
	successResponse(c, trade)
}

func (s *Server) handlePerformance(c *gin.Context) {
	successResponse(c, s.journal.Performance())
}

// handlePerformanceReport runs the full metrics engine with optional
// index / date filters
func (s *Server) handlePerformanceReport(c *gin.Context) {
	var filter tradelog.MetricsFilter
	if index := c.Query("index"); index != "" {
		filter.Index = market.ParseIndex(index)
	}
	if from := c.Query("from"); from != "" {
		start, err := time.Parse(dateLayout, from)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return
		}
		filter.Start = start
	}
	if to := c.Query("to"); to != "" {
		end, err := time.Parse(dateLayout, to)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return
		}
		filter.End = end
	}

	report, err := tradelog.CalculateMetrics(s.journal.All(), filter)
	if err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	successResponse(c, report)
}

func (s *Server) handlePatternEffectiveness(c *gin.Context) {
	buckets, ranking := tradelog.PatternEffectiveness(s.journal.All())
	successResponse(c, gin.H{"patterns": buckets, "ranking": ranking})
}

func (s *Server) handlePsychologyCorrelation(c *gin.Context) {
	successResponse(c, tradelog.CorrelatePsychology(s.journal.All()))
}

func (s *Server) handleStats(c *gin.Context) {
	successResponse(c, s.journal.Stats())
}
