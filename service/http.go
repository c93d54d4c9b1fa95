/* Copyright 2026 Rabe42
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rabe42/state-machines/caps"
	"github.com/rabe42/state-machines/caps/goja"
	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/fleet"
	"github.com/rabe42/state-machines/machine"
	"github.com/rabe42/state-machines/warehouse"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// StartResponse answers POST /start/{chart-id}.
type StartResponse struct {
	MachineId string          `json:"machineId"`
	Report    *machine.Report `json:"report"`
}

// TimerRequest is the body of POST /timer/{machine-id}/{event-id}.
// Exactly one of In, At, and Cron should be given.
type TimerRequest struct {
	// Id names the timer; empty means a generated id.
	Id string `json:"id,omitempty"`

	// In is a duration like "5s" or "1h30m".
	In string `json:"in,omitempty"`

	// At is an RFC 3339 time.
	At string `json:"at,omitempty"`

	// Cron is a cron expression; the timer re-arms after each
	// firing.
	Cron string `json:"cron,omitempty"`
}

// Router makes the service's HTTP API.
func (s *Service) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(accessLogMiddleware())

	router.Get("/ping", s.handlePing)

	router.Get("/state-chart/", s.handleChartIds)
	router.Post("/state-chart/", s.handlePutChart)
	router.Get("/state-chart/{chart-id}", s.handleGetChart)
	router.Delete("/state-chart/{chart-id}", s.handleRemoveChart)

	router.Get("/action/", s.handleCapabilities)
	router.Post("/action/", s.handleRegisterSource)

	router.Post("/start/{chart-id}", s.handleStart)
	router.Get("/machine/", s.handleMachineIds)
	router.Get("/machine/{machine-id}", s.handleStatus)
	router.Delete("/machine/{machine-id}", s.handleRemoveMachine)

	router.Post("/send/{machine-id}/{event-id}", s.handleSendEvent)
	router.Post("/set-var/{machine-id}/{variable-id}", s.handleSetVariable)

	router.Get("/watch/{machine-id}", s.handleWatch)

	router.Get("/timer/", s.handleTimers)
	router.Post("/timer/{machine-id}/{event-id}", s.handleAddTimer)
	router.Delete("/timer/{timer-id}", s.handleRemTimer)

	if s.staticDir != "" {
		fs := http.FileServer(http.Dir(s.staticDir))
		router.Handle("/static/*", http.StripPrefix("/static", fs))
	}

	return router
}

func accessLogMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			log.Debug("API request - ", r.Method, " ", r.URL)
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// pathParam returns a path parameter with its escaping undone, so a
// machine id like "sms:///..." can travel inside one path segment.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	s, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return s
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := errorKind(err)
	render.Status(r, code)
	render.JSON(w, r, &ErrorResponse{
		ErrorType:    kind,
		ErrorMessage: err.Error(),
	})
}

// errorKind maps an engine error to a status code and a stable error
// type name for the response body.
func errorKind(err error) (int, string) {
	switch err.(type) {
	case *chart.ValidationError:
		return http.StatusBadRequest, "ValidationError"
	case *chart.InvalidNodeId:
		return http.StatusBadRequest, "InvalidNodeId"
	case *chart.TypeMismatch:
		return http.StatusUnprocessableEntity, "TypeMismatch"
	case *warehouse.NotFound:
		return http.StatusNotFound, "NotFound"
	case *fleet.NotFound:
		return http.StatusNotFound, "NotFound"
	case *machine.UnknownVariable:
		return http.StatusNotFound, "UnknownVariable"
	case *machine.StabilizationOverflow:
		return http.StatusInternalServerError, "StabilizationOverflow"
	case *machine.ActionError:
		return http.StatusInternalServerError, "ActionError"
	case *machine.PredicateError:
		return http.StatusInternalServerError, "PredicateError"
	case *caps.UnknownCapability:
		return http.StatusInternalServerError, "UnknownCapability"
	case *caps.BadCall:
		return http.StatusInternalServerError, "BadCall"
	}

	switch err {
	case machine.NotStarted:
		return http.StatusBadRequest, "NotStarted"
	case machine.Started:
		return http.StatusBadRequest, "AlreadyStarted"
	case machine.EmptyEvent:
		return http.StatusBadRequest, "EmptyEvent"
	case TimerExists:
		return http.StatusConflict, "TimerExists"
	case TimerNotFound:
		return http.StatusNotFound, "TimerNotFound"
	}

	return http.StatusInternalServerError, "InternalError"
}

func (s *Service) handlePing(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("pong")); err != nil {
		log.WithError(err).Warn("Failed to write 'pong' response")
	}
}

func (s *Service) handleChartIds(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.ChartIds(r.Context()))
}

func (s *Service) handlePutChart(w http.ResponseWriter, r *http.Request) {
	bs, err := io.ReadAll(r.Body)
	if err != nil {
		renderError(w, r, err)
		return
	}

	def, err := chart.Read(bs)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &ErrorResponse{
			ErrorType:    "BadDefinition",
			ErrorMessage: err.Error(),
		})
		return
	}

	id, err := s.PutChart(r.Context(), def)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"id": id})
}

func (s *Service) handleGetChart(w http.ResponseWriter, r *http.Request) {
	def, err := s.GetChart(r.Context(), pathParam(r, "chart-id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, def)
}

func (s *Service) handleRemoveChart(w http.ResponseWriter, r *http.Request) {
	if err := s.RemoveChart(r.Context(), pathParam(r, "chart-id")); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (s *Service) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.Capabilities(r.Context()))
}

func (s *Service) handleRegisterSource(w http.ResponseWriter, r *http.Request) {
	bs, err := io.ReadAll(r.Body)
	if err != nil {
		renderError(w, r, err)
		return
	}

	src, err := goja.ReadSource(bs)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &ErrorResponse{
			ErrorType:    "BadSource",
			ErrorMessage: err.Error(),
		})
		return
	}

	if err := s.RegisterSource(r.Context(), src); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &ErrorResponse{
			ErrorType:    "BadSource",
			ErrorMessage: err.Error(),
		})
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"name": src.Name, "kind": src.Kind})
}

func (s *Service) handleStart(w http.ResponseWriter, r *http.Request) {
	mid, rep, err := s.Start(r.Context(), pathParam(r, "chart-id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, &StartResponse{
		MachineId: mid,
		Report:    rep,
	})
}

func (s *Service) handleMachineIds(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.MachineIds(r.Context()))
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	ms, err := s.Status(r.Context(), pathParam(r, "machine-id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, ms)
}

func (s *Service) handleRemoveMachine(w http.ResponseWriter, r *http.Request) {
	if err := s.RemoveMachine(r.Context(), pathParam(r, "machine-id")); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (s *Service) handleSendEvent(w http.ResponseWriter, r *http.Request) {
	rep, err := s.SendEvent(r.Context(), pathParam(r, "machine-id"), pathParam(r, "event-id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, rep)
}

func (s *Service) handleSetVariable(w http.ResponseWriter, r *http.Request) {
	bs, err := io.ReadAll(r.Body)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var v chart.Value
	if err := json.Unmarshal(bs, &v); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &ErrorResponse{
			ErrorType:    "BadValue",
			ErrorMessage: err.Error(),
		})
		return
	}

	rep, err := s.SetVariable(r.Context(), pathParam(r, "machine-id"), pathParam(r, "variable-id"), v)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, rep)
}

func (s *Service) handleTimers(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.timers)
}

func (s *Service) handleAddTimer(w http.ResponseWriter, r *http.Request) {
	mid := pathParam(r, "machine-id")
	eventId := pathParam(r, "event-id")

	// 404 for a machine nobody is running.
	if err := s.fleet.WithMachine(mid, func(m *machine.Machine) error {
		return nil
	}); err != nil {
		renderError(w, r, err)
		return
	}

	var req TimerRequest
	bs, err := io.ReadAll(r.Body)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if 0 < len(bs) {
		if err := json.Unmarshal(bs, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, &ErrorResponse{
				ErrorType:    "BadTimer",
				ErrorMessage: err.Error(),
			})
			return
		}
	}

	te := &TimerEntry{
		Id:      req.Id,
		Machine: mid,
		Event:   eventId,
		Cron:    req.Cron,
	}
	if "" == te.Id {
		te.Id = uuid.NewString()
	}

	switch {
	case "" != req.Cron:
		// Timers.Add computes the first firing.
	case "" != req.In:
		d, err := time.ParseDuration(req.In)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, &ErrorResponse{
				ErrorType:    "BadTimer",
				ErrorMessage: err.Error(),
			})
			return
		}
		te.At = time.Now().UTC().Add(d)
	case "" != req.At:
		at, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, &ErrorResponse{
				ErrorType:    "BadTimer",
				ErrorMessage: err.Error(),
			})
			return
		}
		te.At = at.UTC()
	default:
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &ErrorResponse{
			ErrorType:    "BadTimer",
			ErrorMessage: "need one of in, at, cron",
		})
		return
	}

	// The timer has to outlive this request.
	if err := s.timers.Add(context.Background(), te); err != nil {
		if err == TimerExists {
			renderError(w, r, err)
			return
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &ErrorResponse{
			ErrorType:    "BadTimer",
			ErrorMessage: err.Error(),
		})
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, te)
}

func (s *Service) handleRemTimer(w http.ResponseWriter, r *http.Request) {
	if err := s.timers.Rem(r.Context(), pathParam(r, "timer-id")); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}
