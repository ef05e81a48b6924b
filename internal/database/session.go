package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/registry"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

// ErrNoSession is returned by LoadSession when nothing has been saved yet.
var ErrNoSession = errors.New("no saved session")

// Session is everything needed to resume work in a new process.
type Session struct {
	World    world.MemorySnapshot
	Registry registry.Snapshot
	Sequence uint64 // last instance name number handed out
}

const (
	metaNextLevel = "next_level"
	metaNextActor = "next_actor"
	metaSequence  = "sequence"
)

var sessionTables = []string{
	"group_members", "room_groups", "replacement_links", "actor_links",
	"filtered_actors", "actors", "levels",
}

// SaveSession replaces the stored session with s in one transaction.
func (d *Database) SaveSession(s Session) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range sessionTables {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := d.saveWorld(tx, s.World); err != nil {
		return err
	}
	if err := d.saveRegistry(tx, s.Registry); err != nil {
		return err
	}

	meta := map[string]uint64{
		metaNextLevel: uint64(s.World.NextLevel),
		metaNextActor: uint64(s.World.NextActor),
		metaSequence:  s.Sequence,
	}
	upsert := d.qb.Build("INSERT INTO meta (name, value) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET value = excluded.value")
	for name, v := range meta {
		if _, err := tx.Exec(upsert, name, strconv.FormatUint(v, 10)); err != nil {
			return fmt.Errorf("failed to save %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

func (d *Database) saveWorld(tx *sql.Tx, snap world.MemorySnapshot) error {
	insertLevel := d.qb.Build(`INSERT INTO levels
		(id, asset, package, name, loc_x, loc_y, loc_z, yaw, folder, color, visible, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, l := range snap.Levels {
		loc := l.Transform.Location
		if _, err := tx.Exec(insertLevel,
			int64(l.ID), l.Asset, l.Package, l.Name,
			loc.X, loc.Y, loc.Z, l.Transform.Yaw,
			l.Folder, l.Color.Hex(), boolInt(l.Visible), int(l.State),
		); err != nil {
			return fmt.Errorf("failed to save level %d: %w", l.ID, err)
		}
	}

	insertActor := d.qb.Build(`INSERT INTO actors
		(id, level_id, name, class, tags, loc_x, loc_y, loc_z, yaw, entry, hidden)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, a := range snap.Actors {
		tags, err := json.Marshal(append([]string{}, a.Tags...))
		if err != nil {
			return fmt.Errorf("failed to encode tags of actor %d: %w", a.ID, err)
		}
		loc := a.Transform.Location
		if _, err := tx.Exec(insertActor,
			int64(a.ID), int64(a.Level), a.Name, a.Class, string(tags),
			loc.X, loc.Y, loc.Z, a.Transform.Yaw,
			boolInt(a.Entry), boolInt(a.Hidden),
		); err != nil {
			return fmt.Errorf("failed to save actor %d: %w", a.ID, err)
		}
	}
	return nil
}

func (d *Database) saveRegistry(tx *sql.Tx, snap registry.Snapshot) error {
	insertGroup := d.qb.Build(`INSERT INTO room_groups
		(root, position, source, loc_x, loc_y, loc_z, yaw, folder, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	insertMember := d.qb.Build(`INSERT INTO group_members
		(root, position, level_id, asset, loc_x, loc_y, loc_z, yaw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	for i, g := range snap.Groups {
		p := g.Placement.Location
		if _, err := tx.Exec(insertGroup,
			int64(g.Root), i, g.Source, p.X, p.Y, p.Z, g.Placement.Yaw, g.Folder, g.Color.Hex(),
		); err != nil {
			return fmt.Errorf("failed to save group %d: %w", g.Root, err)
		}
		for j, m := range g.Subs {
			r := m.Relative.Location
			if _, err := tx.Exec(insertMember,
				int64(g.Root), j, int64(m.Level), m.Asset, r.X, r.Y, r.Z, m.Relative.Yaw,
			); err != nil {
				return fmt.Errorf("failed to save member %d of group %d: %w", m.Level, g.Root, err)
			}
		}
	}

	insertLink := d.qb.Build("INSERT INTO replacement_links (original, replacement) VALUES (?, ?)")
	for _, l := range snap.Links {
		if _, err := tx.Exec(insertLink, int64(l.Original), int64(l.Replacement)); err != nil {
			return fmt.Errorf("failed to save replacement link: %w", err)
		}
	}
	insertActorLink := d.qb.Build("INSERT INTO actor_links (original, replacement) VALUES (?, ?)")
	for _, l := range snap.ActorLinks {
		if _, err := tx.Exec(insertActorLink, int64(l.Original), int64(l.Replacement)); err != nil {
			return fmt.Errorf("failed to save actor link: %w", err)
		}
	}
	insertFiltered := d.qb.Build("INSERT INTO filtered_actors (actor_id, tag) VALUES (?, ?)")
	for _, f := range snap.Filtered {
		if _, err := tx.Exec(insertFiltered, int64(f.Actor), f.Tag); err != nil {
			return fmt.Errorf("failed to save filtered actor: %w", err)
		}
	}
	return nil
}

// LoadSession reads the stored session. It returns ErrNoSession if none
// was ever saved.
func (d *Database) LoadSession() (Session, error) {
	var s Session

	meta, err := d.loadMeta()
	if err != nil {
		return s, err
	}
	if len(meta) == 0 {
		return s, ErrNoSession
	}
	s.World.NextLevel = world.LevelID(meta[metaNextLevel])
	s.World.NextActor = world.ActorID(meta[metaNextActor])
	s.Sequence = meta[metaSequence]

	if s.World.Levels, err = d.loadLevels(); err != nil {
		return s, err
	}
	if s.World.Actors, err = d.loadActors(); err != nil {
		return s, err
	}
	if s.Registry, err = d.loadRegistry(); err != nil {
		return s, err
	}
	return s, nil
}

func (d *Database) loadMeta() (map[string]uint64, error) {
	rows, err := d.db.Query("SELECT name, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("failed to load meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]uint64)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt meta %s=%q: %w", name, value, err)
		}
		meta[name] = v
	}
	return meta, rows.Err()
}

func (d *Database) loadLevels() ([]world.Level, error) {
	rows, err := d.db.Query(`SELECT id, asset, package, name, loc_x, loc_y, loc_z, yaw, folder, color, visible, state
		FROM levels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load levels: %w", err)
	}
	defer rows.Close()

	var out []world.Level
	for rows.Next() {
		var (
			l            world.Level
			id           int64
			x, y, z, yaw float64
			color        string
			visible      int
			state        int
		)
		if err := rows.Scan(&id, &l.Asset, &l.Package, &l.Name, &x, &y, &z, &yaw, &l.Folder, &color, &visible, &state); err != nil {
			return nil, err
		}
		l.ID = world.LevelID(id)
		l.Transform = geom.At(geom.Vec(x, y, z), yaw)
		if l.Color, err = geom.ParseColor(color); err != nil {
			return nil, fmt.Errorf("level %d: %w", id, err)
		}
		l.Visible = visible != 0
		l.State = world.State(state)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (d *Database) loadActors() ([]world.Actor, error) {
	rows, err := d.db.Query(`SELECT id, level_id, name, class, tags, loc_x, loc_y, loc_z, yaw, entry, hidden
		FROM actors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load actors: %w", err)
	}
	defer rows.Close()

	var out []world.Actor
	for rows.Next() {
		var (
			a             world.Actor
			id, level     int64
			tags          string
			x, y, z, yaw  float64
			entry, hidden int
		)
		if err := rows.Scan(&id, &level, &a.Name, &a.Class, &tags, &x, &y, &z, &yaw, &entry, &hidden); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
			return nil, fmt.Errorf("actor %d has corrupt tags: %w", id, err)
		}
		a.ID = world.ActorID(id)
		a.Level = world.LevelID(level)
		a.Transform = geom.At(geom.Vec(x, y, z), yaw)
		a.Entry = entry != 0
		a.Hidden = hidden != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *Database) loadRegistry() (registry.Snapshot, error) {
	var snap registry.Snapshot

	rows, err := d.db.Query(`SELECT root, source, loc_x, loc_y, loc_z, yaw, folder, color
		FROM room_groups ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("failed to load groups: %w", err)
	}
	index := make(map[world.LevelID]int)
	for rows.Next() {
		var (
			g            registry.RootGroup
			root         int64
			x, y, z, yaw float64
			color        string
		)
		if err := rows.Scan(&root, &g.Source, &x, &y, &z, &yaw, &g.Folder, &color); err != nil {
			rows.Close()
			return snap, err
		}
		g.Root = world.LevelID(root)
		g.Placement = geom.At(geom.Vec(x, y, z), yaw)
		if g.Color, err = geom.ParseColor(color); err != nil {
			rows.Close()
			return snap, fmt.Errorf("group %d: %w", root, err)
		}
		index[g.Root] = len(snap.Groups)
		snap.Groups = append(snap.Groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = d.db.Query(`SELECT root, level_id, asset, loc_x, loc_y, loc_z, yaw
		FROM group_members ORDER BY root, position`)
	if err != nil {
		return snap, fmt.Errorf("failed to load group members: %w", err)
	}
	for rows.Next() {
		var (
			root, level  int64
			m            registry.Member
			x, y, z, yaw float64
		)
		if err := rows.Scan(&root, &level, &m.Asset, &x, &y, &z, &yaw); err != nil {
			rows.Close()
			return snap, err
		}
		m.Level = world.LevelID(level)
		m.Relative = geom.At(geom.Vec(x, y, z), yaw)
		if i, ok := index[world.LevelID(root)]; ok {
			snap.Groups[i].Subs = append(snap.Groups[i].Subs, m)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	links, err := d.loadPairs("SELECT original, replacement FROM replacement_links ORDER BY original")
	if err != nil {
		return snap, err
	}
	for _, p := range links {
		snap.Links = append(snap.Links, registry.Link{Original: world.LevelID(p[0]), Replacement: world.LevelID(p[1])})
	}
	actorLinks, err := d.loadPairs("SELECT original, replacement FROM actor_links ORDER BY original")
	if err != nil {
		return snap, err
	}
	for _, p := range actorLinks {
		snap.ActorLinks = append(snap.ActorLinks, registry.ActorLink{Original: world.ActorID(p[0]), Replacement: world.ActorID(p[1])})
	}

	frows, err := d.db.Query("SELECT actor_id, tag FROM filtered_actors ORDER BY actor_id")
	if err != nil {
		return snap, fmt.Errorf("failed to load filtered actors: %w", err)
	}
	defer frows.Close()
	for frows.Next() {
		var id int64
		var tag string
		if err := frows.Scan(&id, &tag); err != nil {
			return snap, err
		}
		snap.Filtered = append(snap.Filtered, registry.FilteredActor{Actor: world.ActorID(id), Tag: tag})
	}
	return snap, frows.Err()
}

func (d *Database) loadPairs(query string) ([][2]int64, error) {
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	defer rows.Close()

	var out [][2]int64
	for rows.Next() {
		var p [2]int64
		if err := rows.Scan(&p[0], &p[1]); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
