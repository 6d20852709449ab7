// Command toporegion builds a design region against an engine session, pushes
// a sequence of density maps through it and records the results.
//
// With no -engine address the in-process reference engine is used.
// "toporegion -db ledger.db migrate up|down|status" manages the ledger schema.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/toporegion/internal/config"
	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/engine/bridge"
	"github.com/banshee-data/toporegion/internal/engine/memengine"
	"github.com/banshee-data/toporegion/internal/fsutil"
	"github.com/banshee-data/toporegion/internal/monitoring"
	"github.com/banshee-data/toporegion/internal/region"
	"github.com/banshee-data/toporegion/internal/report"
	"github.com/banshee-data/toporegion/internal/storage/sqlite"
	"github.com/banshee-data/toporegion/internal/units"
	"github.com/banshee-data/toporegion/internal/version"
)

var (
	configPath  = flag.String("config", "", "Region config JSON (empty uses built-in defaults)")
	engineAddr  = flag.String("engine", "", "Engine gRPC address (empty runs the in-process engine)")
	designKind  = flag.String("design", designUniform, "Density map: uniform, random or ring")
	designValue = flag.Float64("value", 0.5, "Density for -design uniform")
	seed        = flag.Uint64("seed", 1, "Seed for -design random")
	iterations  = flag.Int("iterations", 1, "Number of updates to apply")
	dbPath      = flag.String("db", "", "Ledger database path (empty disables recording)")
	outDir      = flag.String("out", "", "Directory for PNG figures (empty disables)")
	htmlOut     = flag.Bool("html", false, "Also write HTML heatmaps to -out")
	plotUnits   = flag.String("plot-units", units.Micrometre, "Figure axis units: "+units.GetValidUnitsString())
	showVersion = flag.Bool("version", false, "Print version and exit")
)

var logf = monitoring.Prefixed("toporegion")

// runOptions carries the parsed command line into run.
type runOptions struct {
	Config     *config.RegionConfig
	EngineAddr string
	Design     string
	Value      float64
	Seed       uint64
	Iterations int
	DBPath     string
	OutDir     string
	HTML       bool
	PlotUnits  string
	FS         fsutil.FileSystem
}

// runResult summarises a finished run.
type runResult struct {
	RunID    string
	Revision int
	Files    []string
	EpsMin   float64
	EpsMax   float64
	// Fill is the mean permittivity as a density in [0,1].
	Fill float64
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("toporegion"))
		return
	}
	if flag.NArg() > 0 {
		if flag.Arg(0) != "migrate" {
			log.Fatalf("unknown command %q; %s", flag.Arg(0), migrateUsage)
		}
		status, err := runMigrate(*dbPath, flag.Args()[1:])
		if err != nil {
			log.Fatalf("migrate failed: %v", err)
		}
		fmt.Println(status)
		return
	}

	cfg := config.EmptyRegionConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadRegionConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, runOptions{
		Config:     cfg,
		EngineAddr: *engineAddr,
		Design:     *designKind,
		Value:      *designValue,
		Seed:       *seed,
		Iterations: *iterations,
		DBPath:     *dbPath,
		OutDir:     *outDir,
		HTML:       *htmlOut,
		PlotUnits:  *plotUnits,
		FS:         fsutil.OSFileSystem{},
	})
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}
	if res.RunID != "" {
		fmt.Fprintf(os.Stdout, "run %s: revision %d, eps [%.4f, %.4f], fill %.3f\n", res.RunID, res.Revision, res.EpsMin, res.EpsMax, res.Fill)
	} else {
		fmt.Fprintf(os.Stdout, "revision %d, eps [%.4f, %.4f], fill %.3f\n", res.Revision, res.EpsMin, res.EpsMax, res.Fill)
	}
	for _, f := range res.Files {
		fmt.Fprintln(os.Stdout, f)
	}
}

func run(ctx context.Context, o runOptions) (*runResult, error) {
	if o.Config == nil {
		o.Config = config.EmptyRegionConfig()
	}
	if err := o.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if o.Iterations < 1 {
		return nil, fmt.Errorf("-iterations must be at least 1, got %d", o.Iterations)
	}
	if o.PlotUnits != "" && !units.IsValid(o.PlotUnits) {
		return nil, fmt.Errorf("-plot-units %q is not one of %s", o.PlotUnits, units.GetValidUnitsString())
	}

	sess, closeSession, err := openSession(o)
	if err != nil {
		return nil, err
	}
	defer closeSession()

	opts, err := region.OptionsFromConfig(o.Config)
	if err != nil {
		return nil, err
	}
	r, err := region.New(ctx, sess, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build region: %w", err)
	}

	design, err := newDesigner(o.Design, r.XSize(), r.YSize(), o.Value, o.Seed)
	if err != nil {
		return nil, err
	}

	var store *sqlite.Store
	res := &runResult{}
	if o.DBPath != "" {
		store, err = sqlite.Open(o.DBPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		rec := sqlite.RunFromRegion(r)
		if raw, err := json.Marshal(o.Config); err == nil {
			rec.ConfigJSON = raw
		}
		rec.Notes = fmt.Sprintf("design=%s iterations=%d", o.Design, o.Iterations)
		if err := store.InsertRun(rec); err != nil {
			return nil, err
		}
		res.RunID = rec.RunID
	}

	for iter := range o.Iterations {
		if err := r.Update(ctx, design(iter)); err != nil {
			return nil, fmt.Errorf("update %d: %w", iter, err)
		}
		if store == nil {
			continue
		}
		perm, err := r.Permittivity()
		if err != nil {
			return nil, err
		}
		if _, err := store.InsertUpdate(&sqlite.Update{RunID: res.RunID, Revision: r.Revision(), Permittivity: perm}); err != nil {
			return nil, err
		}
	}
	res.Revision = r.Revision()

	perm, err := r.Permittivity()
	if err != nil {
		return nil, err
	}
	res.EpsMin, res.EpsMax = perm.Range()
	res.Fill = r.Bounds().Density(perm.Mean())

	eps, err := r.CaptureEpsilon(ctx)
	if err != nil {
		return nil, err
	}
	field, err := r.EDistribution(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if _, err := store.InsertSnapshot(res.RunID, r.Snapshot()); err != nil {
			return nil, err
		}
	}

	if o.OutDir != "" {
		files, err := writeFigures(o, r, eps, field)
		if err != nil {
			return nil, err
		}
		res.Files = files
	}

	logf("%s finished at revision %d", r.Name(), res.Revision)
	return res, nil
}

// openSession returns the engine session named by o and its cleanup.
func openSession(o runOptions) (engine.Session, func(), error) {
	if o.EngineAddr == "" {
		s := memengine.New(memengine.Config{
			Frequencies:     o.Config.GetEngineFrequencies(),
			BackgroundIndex: o.Config.GetEngineBackgroundIndex(),
		})
		return s, func() {}, nil
	}
	c, err := bridge.Dial(o.EngineAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial engine %s: %w", o.EngineAddr, err)
	}
	logf("connected to engine at %s", o.EngineAddr)
	return c, func() {
		if err := c.Close(); err != nil {
			logf("failed to close engine connection: %v", err)
		}
	}, nil
}

func writeFigures(o runOptions, r *region.Region, eps *engine.Tensor, field *engine.FieldData) ([]string, error) {
	epsSlice, err := report.EpsilonSlice(eps, midPlane(eps.Shape))
	if err != nil {
		return nil, err
	}
	fieldSlice, err := report.FieldMagnitudeSlice(field, midPlane(field.E.Shape), 0)
	if err != nil {
		return nil, err
	}

	out := strings.TrimSuffix(o.OutDir, "/") + "/"
	rr := report.Renderer{FS: o.FS, Units: o.PlotUnits}

	var files []string
	path, err := rr.EpsilonPNG(out+"epsilon.png", epsSlice, r.Grid(), r.Bounds())
	if err != nil {
		return nil, err
	}
	files = append(files, path)
	if path, err = rr.FieldPNG(out+"field.png", fieldSlice, r.Grid()); err != nil {
		return nil, err
	}
	files = append(files, path)

	if o.HTML {
		if path, err = rr.HTMLHeatmap(out+"epsilon.html", r.Name()+" permittivity", epsSlice, r.Grid()); err != nil {
			return nil, err
		}
		files = append(files, path)
		if path, err = rr.HTMLHeatmap(out+"field.html", r.Name()+" |E|", fieldSlice, r.Grid()); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

// midPlane picks the z slice of a (nx, ny, nz, ...) tensor shape.
func midPlane(shape []int) int {
	if len(shape) < 3 {
		return 0
	}
	return report.MidZ(shape[2])
}
