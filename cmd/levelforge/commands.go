package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/lawnchairsociety/levelforge/internal/bridge"
	"github.com/lawnchairsociety/levelforge/internal/datatable"
	"github.com/lawnchairsociety/levelforge/internal/forge"
	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/randsel"
	"github.com/lawnchairsociety/levelforge/internal/world"
	"golang.org/x/crypto/bcrypt"
)

func (a *app) dispatch(command string) error {
	switch command {
	case "build", "regenerate", "filter", "generate":
		return a.tableCommand(command)
	case "merge":
		return a.merge()
	case "spawn":
		return a.spawn()
	case "gateways":
		return a.gateways()
	case "attach":
		return a.attach()
	case "reconcile":
		rr := a.session.Reconcile()
		fmt.Fprintf(a.stdout, "dropped %d, retired %d, restored %d groups; %d actor links and %d filtered actors pruned\n",
			len(rr.Dropped), len(rr.Retired), len(rr.Restored), rr.ActorLinksDropped, rr.FilteredDropped)
		return a.save(nil)
	case "clear":
		n, err := a.session.ClearAll()
		a.printMessages()
		if saveErr := a.save(&forge.Result{Operation: "clear", LevelsRemoved: n}); saveErr != nil {
			return saveErr
		}
		return err
	case "load-all":
		a.session.LoadAllLevels()
		a.printMessages()
		return a.save(nil)
	case "status":
		return a.status()
	case "history":
		return a.history()
	case "watch":
		return a.watch()
	case "serve":
		return a.serve()
	}
	return fmt.Errorf("unknown command %q", command)
}

func (a *app) loadTable() (*datatable.Table, error) {
	if a.opts.tableFile == "" {
		return nil, forge.ErrNoTable
	}
	return datatable.LoadFile(a.opts.tableFile)
}

func (a *app) tableCommand(command string) error {
	table, err := a.loadTable()
	if err != nil {
		return err
	}
	seed := randsel.SeedFromFlag(a.opts.seed)

	var res *forge.Result
	switch command {
	case "build":
		res, err = a.session.Build(table, a.opts.count, seed)
	case "regenerate":
		res, err = a.session.Regenerate(table, seed)
	case "filter":
		res, err = a.session.FilterActorsByTag(table, seed)
	case "generate":
		res, err = a.session.GenerateActors(table, seed)
	}
	a.printMessages()

	// A failed operation can stop part way; keep what it did.
	if res != nil {
		if saveErr := a.save(res); saveErr != nil {
			return saveErr
		}
		if a.opts.json {
			if jsonErr := writeJSON(a.stdout, res); jsonErr != nil {
				return jsonErr
			}
		} else {
			fmt.Fprintf(a.stdout, "seed %d: %s\n", res.Seed, res.Summary())
		}
	}
	return err
}

func (a *app) merge() error {
	res, err := a.session.Merge()
	a.printMessages()
	if err != nil {
		return err
	}
	if a.opts.exportFile != "" {
		f, err := os.Create(a.opts.exportFile)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		if err := forge.ExportMerged(a.engine, a.opts.mergedPath, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "exported merged level to %s\n", a.opts.exportFile)
	}
	return a.save(res)
}

func (a *app) spawn() error {
	g, err := a.session.SpawnLevel(a.opts.path, geom.Vec(a.opts.x, a.opts.y, a.opts.z), a.opts.yaw)
	a.printMessages()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "spawned %s as level %d at %s\n", g.Source, g.Root, g.Placement)
	return a.save(nil)
}

func (a *app) gateways() error {
	gws, err := a.session.GatewaysOf(world.LevelID(a.opts.level))
	a.printMessages()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTOR\tNAME\tENTRY\tWORLD")
	for _, g := range gws {
		fmt.Fprintf(w, "%d\t%s\t%v\t%s\n", g.Actor, g.Name, g.Entry, g.World)
	}
	return w.Flush()
}

func (a *app) attach() error {
	placement, err := a.session.AttachToGateway(
		world.ActorID(a.opts.out), world.LevelID(a.opts.root), world.ActorID(a.opts.in), !a.opts.keepGateways)
	a.printMessages()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "level %d placed at %s\n", a.opts.root, placement)
	return a.save(nil)
}

func (a *app) status() error {
	reg := a.session.Registry()
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOT\tSOURCE\tLEVELS\tREPLACED BY\tFOLDER\tPLACEMENT")
	for _, g := range reg.Groups() {
		rep := "-"
		if id, ok := reg.Replacement(g.Root); ok {
			rep = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n", g.Root, g.Source, g.Size(), rep, g.Folder, g.Placement)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%d streamed levels, %d groups, %d filtered actors\n",
		len(a.engine.Levels()), reg.Len(), len(reg.Filtered()))
	return nil
}

func (a *app) history() error {
	runs, err := a.db.Runs(a.opts.limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tOPERATION\tSEED\tFIXED\tSUMMARY")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%v\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Operation, r.Seed, r.FixedSeed, r.Summary)
	}
	return w.Flush()
}

// watch revalidates the data table each time it is saved.
func (a *app) watch() error {
	if a.opts.tableFile == "" {
		return forge.ErrNoTable
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(a.stdout, "watching %s, press Ctrl+C to stop\n", a.opts.tableFile)
	return watchTable(ctx, a.opts.tableFile, func(t *datatable.Table, err error) {
		if err != nil {
			fmt.Fprintf(a.stdout, "invalid: %v\n", err)
			return
		}
		fmt.Fprintf(a.stdout, "ok: %d level rows, %d tag rows, %d actor rows\n",
			len(t.Levels), len(t.Tags), len(t.Actors))
	})
}

// watchTable calls fn with every reloaded version of path until ctx ends.
func watchTable(ctx context.Context, path string, fn func(*datatable.Table, error)) error {
	w, err := datatable.NewWatcher(path)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case name, ok := <-w.Events:
			if !ok {
				return nil
			}
			t, err := datatable.LoadFile(name)
			if err != nil {
				logger.Warning("Data table reload failed", "path", name, "error", err)
			} else {
				logger.Info("Data table reloaded", "path", name, "levels", len(t.Levels))
			}
			fn(t, err)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warning("Data table watcher error", "error", err)
		}
	}
}

func (a *app) serve() error {
	srv := bridge.New(a.cfg.Bridge, a.session, a.recorder)
	srv.OnChange(func(op string, res *forge.Result) {
		if err := a.save(res); err != nil {
			logger.Error("Failed to save session", "op", op, "error", err)
		}
	})

	if len(a.cfg.Bridge.AllowedOrigins) == 0 {
		logger.Info("Bridge origin policy", "mode", "same-origin")
	} else if len(a.cfg.Bridge.AllowedOrigins) == 1 && a.cfg.Bridge.AllowedOrigins[0] == "*" {
		logger.Warning("Bridge allows all origins (not recommended outside local use)")
	} else {
		logger.Info("Bridge origin policy", "allowed_origins", a.cfg.Bridge.AllowedOrigins)
	}
	if a.cfg.Bridge.TokenHash == "" {
		logger.Warning("Bridge token not configured, clients are not authenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if a.opts.tableFile != "" {
		table, err := a.loadTable()
		if err != nil {
			return err
		}
		srv.SetTable(table)

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := watchTable(ctx, a.opts.tableFile, func(t *datatable.Table, err error) {
				if err == nil {
					srv.SetTable(t)
				}
			})
			if err != nil {
				logger.Warning("Data table hot reload disabled", "error", err)
			}
		}()
	}

	err := srv.ListenAndServe(ctx)
	stop()
	wg.Wait()
	logger.Info("Command bridge stopped")
	return err
}

// hashToken prints the bcrypt hash to put in bridge.token_hash.
func hashToken(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(stderr, "usage: levelforge hash-token <token>")
		return 2
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(hash))
	return 0
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
