package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/forge"
	"github.com/lawnchairsociety/levelforge/internal/randsel"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

var (
	ErrUnknownOp    = fmt.Errorf("%w: unknown operation", fault.ErrValidation)
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// Execute runs one request against the session. It holds the session lock
// for the whole command.
func (s *Server) Execute(req Request) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.Drain()
	}
	result, changed, err := s.dispatch(req)

	resp := Response{ID: req.ID, Op: req.Op, OK: err == nil}
	if s.recorder != nil {
		resp.Messages = s.recorder.Drain()
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if result != nil {
		data, merr := json.Marshal(result)
		if merr != nil {
			resp.OK = false
			resp.Error = fmt.Sprintf("failed to encode result: %v", merr)
		} else {
			resp.Result = data
		}
	}

	if changed != nil && s.after != nil {
		s.after(req.Op, changed)
	}
	return resp
}

// dispatch returns the value to send back and, for commands that may have
// changed state, the Result handed to the change hook. Failed table
// commands still report a Result since they can stop part way.
func (s *Server) dispatch(req Request) (any, *forge.Result, error) {
	seed := randsel.SeedFromFlag(req.Seed)

	switch req.Op {
	case OpBuild:
		res, err := s.session.Build(s.table, req.Count, seed)
		return res, res, err
	case OpRegenerate:
		res, err := s.session.Regenerate(s.table, seed)
		return res, res, err
	case OpFilter:
		res, err := s.session.FilterActorsByTag(s.table, seed)
		return res, res, err
	case OpGenerate:
		res, err := s.session.GenerateActors(s.table, seed)
		return res, res, err
	case OpMerge:
		res, err := s.session.Merge()
		return res, res, err

	case OpSpawn:
		g, err := s.session.SpawnLevel(req.Path, req.Position, req.Yaw)
		if err != nil {
			return nil, nil, err
		}
		return g, &forge.Result{Operation: "spawn", Created: []world.LevelID{g.Root}}, nil
	case OpGateways:
		gws, err := s.session.GatewaysOf(req.Level)
		return gws, nil, err
	case OpAttach:
		del := s.session.Options().DeleteGateways
		if req.DeleteGateways != nil {
			del = *req.DeleteGateways
		}
		placement, err := s.session.AttachToGateway(req.Out, req.Root, req.In, del)
		if err != nil {
			return nil, nil, err
		}
		return placement, &forge.Result{Operation: "attach"}, nil
	case OpClear:
		n, err := s.session.ClearAll()
		return map[string]int{"removed": n}, &forge.Result{Operation: "clear", LevelsRemoved: n}, err
	case OpReconcile:
		rr := s.session.Reconcile()
		if !rr.Changed() {
			return rr, nil, nil
		}
		return rr, &forge.Result{Operation: "reconcile"}, nil
	case OpLoadAll:
		n := s.session.LoadAllLevels()
		return map[string]int{"levels": n}, &forge.Result{Operation: "load_all"}, nil
	case OpStatus:
		return s.status(), nil, nil
	}

	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownOp, req.Op)
}

func (s *Server) status() Status {
	reg := s.session.Registry()
	return Status{
		Levels:   len(s.session.Engine().Levels()),
		Groups:   reg.Len(),
		Links:    len(reg.Links()),
		Filtered: len(reg.Filtered()),
		HasTable: s.table != nil,
	}
}

func errorResponse(req Request, err error) Response {
	return Response{ID: req.ID, Op: req.Op, OK: false, Error: err.Error()}
}
