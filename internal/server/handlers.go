package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/caffeineduck/webinterp/bridge"
	"github.com/caffeineduck/webinterp/internal/telemetry"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (s *Server) interpret(c *gin.Context) {
	backend := s.bridge.Backend()

	res, err := s.bridge.Interpret(c.Request.Context(), c.Query("code"))
	if err != nil {
		_ = c.Error(err)
		body := errorBody{Error: err.Error(), Reason: bridge.Reason(err)}
		if bridge.IsClientError(err) {
			s.record(backend, telemetry.OutcomeDecodeFailed, res)
			c.JSON(http.StatusBadRequest, body)
			return
		}
		if body.Reason == bridge.ReasonInterpreterUnavailable {
			s.record(backend, telemetry.OutcomeUnavailable, res)
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	outcome := telemetry.OutcomeExecuted
	if !res.State.Executed() {
		outcome = telemetry.OutcomeParseFailed
	}
	s.record(backend, outcome, res)

	c.Set(parseOKKey, res.State.ParseOK())
	c.Set(executedKey, res.State.Executed())
	c.Set(streamsKey, streamCounts{
		standard: len(res.Response.Standard),
		errors:   len(res.Response.Error),
		meta:     len(res.Response.Meta),
	})
	c.JSON(http.StatusOK, res.Response)
}

func (s *Server) record(backend, outcome string, res bridge.Result) {
	if s.metrics != nil {
		s.metrics.RecordInterpretation(backend, outcome, res.Duration)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": s.bridge.Backend(),
	})
}
