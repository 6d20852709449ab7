// Package memengine is an in-process engine.Session. It keeps registered
// objects and script variables in memory, samples imported geometry onto
// monitor grids and reports a placeholder field. It does not solve Maxwell's
// equations; it exists for tests, dry runs and the engine-server binary.
package memengine

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/monitoring"
)

var logf = monitoring.Prefixed("memengine")

// Config tunes the reference session.
type Config struct {
	// Frequencies is the number of frequency points reported by monitors.
	Frequencies int
	// BackgroundIndex is the refractive index outside every import.
	BackgroundIndex float64
	// DefaultPitch (metres) samples monitors not covered by a mesh region.
	DefaultPitch float64
}

// DefaultConfig returns one frequency point in vacuum with a 20 nm fallback pitch.
func DefaultConfig() Config {
	return Config{Frequencies: 1, BackgroundIndex: 1, DefaultPitch: 20e-9}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Frequencies <= 0 {
		c.Frequencies = d.Frequencies
	}
	if c.BackgroundIndex <= 0 || math.IsNaN(c.BackgroundIndex) {
		c.BackgroundIndex = d.BackgroundIndex
	}
	if c.DefaultPitch <= 0 {
		c.DefaultPitch = d.DefaultPitch
	}
	return c
}

type object struct {
	handle  engine.Handle
	monitor engine.MonitorSpec
	mesh    engine.MeshSpec
	imp     engine.ImportSpec
	data    *engine.ImportData
}

// Session implements engine.Session. It is safe for concurrent use.
type Session struct {
	cfg Config

	mu         sync.Mutex
	objects    map[string]*object
	order      []string
	vars       map[string]engine.Array
	transcript []string
}

var _ engine.Session = (*Session)(nil)

// New returns an empty session.
func New(cfg Config) *Session {
	cfg = cfg.withDefaults()
	logf("session created: %d frequency point(s), background index %g", cfg.Frequencies, cfg.BackgroundIndex)
	return &Session{
		cfg:     cfg,
		objects: make(map[string]*object),
		vars:    make(map[string]engine.Array),
	}
}

// Config returns the effective configuration.
func (s *Session) Config() Config { return s.cfg }

func (s *Session) register(ctx context.Context, name string, kind engine.ObjectKind, fill func(*object)) (engine.Handle, error) {
	if err := ctx.Err(); err != nil {
		return engine.Handle{}, err
	}
	if name == "" {
		return engine.Handle{}, fmt.Errorf("%w: empty object name", engine.ErrShape)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; ok {
		return engine.Handle{}, fmt.Errorf("%w: %q", engine.ErrNameCollision, name)
	}
	o := &object{handle: engine.Handle{ID: uuid.New().String(), Name: name, Kind: kind}}
	fill(o)
	s.objects[name] = o
	s.order = append(s.order, name)
	return o.handle, nil
}

func validateMonitor(spec engine.MonitorSpec) error {
	if spec.Dimension != engine.Dim2D && spec.Dimension != engine.Dim3D {
		return fmt.Errorf("%w: monitor %q dimension %d", engine.ErrShape, spec.Name, spec.Dimension)
	}
	x, y, z := spec.Box.Span()
	if x < 0 || y < 0 || z < 0 {
		return fmt.Errorf("%w: monitor %q has inverted extent", engine.ErrShape, spec.Name)
	}
	return nil
}

// AddIndexRegion registers an index monitor.
func (s *Session) AddIndexRegion(ctx context.Context, spec engine.MonitorSpec) (engine.Handle, error) {
	if err := validateMonitor(spec); err != nil {
		return engine.Handle{}, err
	}
	h, err := s.register(ctx, spec.Name, engine.KindIndexMonitor, func(o *object) { o.monitor = spec })
	if err == nil {
		s.recordInterpolation(spec)
	}
	return h, err
}

// AddFieldRegion registers a field monitor.
func (s *Session) AddFieldRegion(ctx context.Context, spec engine.MonitorSpec) (engine.Handle, error) {
	if err := validateMonitor(spec); err != nil {
		return engine.Handle{}, err
	}
	h, err := s.register(ctx, spec.Name, engine.KindFieldMonitor, func(o *object) { o.monitor = spec })
	if err == nil {
		s.recordInterpolation(spec)
	}
	return h, err
}

// AddMeshRegion registers a mesh override.
func (s *Session) AddMeshRegion(ctx context.Context, spec engine.MeshSpec) (engine.Handle, error) {
	if spec.DX <= 0 || spec.DY <= 0 || spec.DZ <= 0 {
		return engine.Handle{}, fmt.Errorf("%w: mesh %q pitch must be positive", engine.ErrShape, spec.Name)
	}
	return s.register(ctx, spec.Name, engine.KindMesh, func(o *object) { o.mesh = spec })
}

// AddImport registers an empty import object.
func (s *Session) AddImport(ctx context.Context, spec engine.ImportSpec) (engine.Handle, error) {
	h, err := s.register(ctx, spec.Name, engine.KindImport, func(o *object) { o.imp = spec })
	if err == nil {
		s.record(engine.AddImportScript(spec.Name, spec.Detail))
	}
	return h, err
}

// ReplaceImport deletes the import referenced by h and recreates it under the
// same name holding data.
func (s *Session) ReplaceImport(ctx context.Context, h engine.Handle, data engine.ImportData) (engine.Handle, error) {
	if err := ctx.Err(); err != nil {
		return engine.Handle{}, err
	}
	if err := data.Validate(); err != nil {
		return engine.Handle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.lookupLocked(h, engine.KindImport)
	if err != nil {
		return engine.Handle{}, err
	}
	cp := engine.ImportData{
		Index: data.Index.Clone(),
		X:     append([]float64(nil), data.X...),
		Y:     append([]float64(nil), data.Y...),
		Z:     append([]float64(nil), data.Z...),
	}
	next := &object{
		handle: engine.Handle{ID: uuid.New().String(), Name: o.handle.Name, Kind: engine.KindImport},
		imp:    o.imp,
		data:   &cp,
	}
	s.objects[o.handle.Name] = next
	s.transcript = append(s.transcript, engine.ReplaceImportScript(o.handle.Name))
	return next.handle, nil
}

// PutV stores a script variable.
func (s *Session) PutV(ctx context.Context, name string, a engine.Array) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("putv %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = a.Clone()
	return nil
}

// GetV reads a script variable.
func (s *Session) GetV(ctx context.Context, name string) (engine.Array, error) {
	if err := ctx.Err(); err != nil {
		return engine.Array{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.vars[name]
	if !ok {
		return engine.Array{}, fmt.Errorf("%w: variable %q", engine.ErrNotFound, name)
	}
	return a.Clone(), nil
}

// Eval appends the script to the transcript and runs the statements the
// session understands (see interpret).
func (s *Session) Eval(ctx context.Context, script string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, script)
	return interpret(script, s.vars)
}

// Transcript returns every script evaluated so far, in order.
func (s *Session) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transcript...)
}

// Objects returns the handles of all live objects in registration order.
func (s *Session) Objects() []engine.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.Handle, 0, len(s.order))
	for _, name := range s.order {
		if o, ok := s.objects[name]; ok {
			out = append(out, o.handle)
		}
	}
	return out
}

// ImportData returns a copy of the geometry held by the named import.
func (s *Session) ImportData(name string) (*engine.ImportData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok || o.data == nil {
		return nil, false
	}
	cp := engine.ImportData{
		Index: o.data.Index.Clone(),
		X:     append([]float64(nil), o.data.X...),
		Y:     append([]float64(nil), o.data.Y...),
		Z:     append([]float64(nil), o.data.Z...),
	}
	return &cp, true
}

// recordInterpolation notes the monitor's sampling mode the way a scripted
// engine would be told it.
func (s *Session) recordInterpolation(spec engine.MonitorSpec) {
	if spec.SpatialInterpolation != "" {
		s.record(engine.SelectAndSet(spec.Name, "spatial interpolation", spec.SpatialInterpolation))
	}
}

func (s *Session) record(script string) {
	s.mu.Lock()
	s.transcript = append(s.transcript, script)
	s.mu.Unlock()
}

func (s *Session) lookupLocked(h engine.Handle, kind engine.ObjectKind) (*object, error) {
	o, ok := s.objects[h.Name]
	if !ok || o.handle.ID != h.ID {
		return nil, fmt.Errorf("%w: %s", engine.ErrNotFound, h)
	}
	if o.handle.Kind != kind {
		return nil, fmt.Errorf("%w: %s is not a %s", engine.ErrNotFound, h, kind)
	}
	return o, nil
}
