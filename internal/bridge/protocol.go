package bridge

import (
	"encoding/json"

	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/report"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

// Operation names accepted in Request.Op.
const (
	OpAuth       = "auth"
	OpBuild      = "build"
	OpRegenerate = "regenerate"
	OpFilter     = "filter"
	OpGenerate   = "generate"
	OpMerge      = "merge"
	OpSpawn      = "spawn"
	OpGateways   = "gateways"
	OpAttach     = "attach"
	OpClear      = "clear"
	OpReconcile  = "reconcile"
	OpLoadAll    = "load_all"
	OpStatus     = "status"
)

// Request is one command sent by a client as a JSON text message.
type Request struct {
	ID    string `json:"id,omitempty"`
	Op    string `json:"op"`
	Token string `json:"token,omitempty"`

	// Seed is used as a fixed seed when non-zero.
	Seed  int64 `json:"seed,omitempty"`
	Count int   `json:"count,omitempty"`

	Path     string      `json:"path,omitempty"`
	Position geom.Vector `json:"position"`
	Yaw      float64     `json:"yaw,omitempty"`

	Level world.LevelID `json:"level,omitempty"`
	Out   world.ActorID `json:"out,omitempty"`
	Root  world.LevelID `json:"root,omitempty"`
	In    world.ActorID `json:"in,omitempty"`

	// DeleteGateways overrides the session default for attach.
	DeleteGateways *bool `json:"delete_gateways,omitempty"`
}

// Response answers exactly one Request.
type Response struct {
	ID       string           `json:"id,omitempty"`
	Op       string           `json:"op"`
	OK       bool             `json:"ok"`
	Error    string           `json:"error,omitempty"`
	Messages []report.Message `json:"messages,omitempty"`
	Result   json.RawMessage  `json:"result,omitempty"`
}

// Status describes the session in answer to OpStatus.
type Status struct {
	Levels   int  `json:"levels"`
	Groups   int  `json:"groups"`
	Links    int  `json:"links"`
	Filtered int  `json:"filtered"`
	HasTable bool `json:"has_table"`
}
