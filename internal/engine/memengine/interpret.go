package memengine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/region/density"
	"github.com/banshee-data/toporegion/internal/region/material"
)

var (
	reStruct   = regexp.MustCompile(`^(\w+)\s*=\s*struct$`)
	reField    = regexp.MustCompile(`^(\w+)\.(\w+)\s*=\s*(.+)$`)
	reTopoCall = regexp.MustCompile(`^(\w+)\s*=\s*topoparamstoindex\(\s*(\w+)\s*,\s*(\w+)\s*\)$`)
)

// interpret runs the subset of the scripting language used by the topology
// update protocol: struct creation, numeric struct fields and
// topoparamstoindex. Other statements are accepted and ignored.
func interpret(script string, vars map[string]engine.Array) error {
	structs := make(map[string]map[string][]float64)
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if m := reStruct.FindStringSubmatch(stmt); m != nil {
			structs[m[1]] = make(map[string][]float64)
			continue
		}
		if m := reTopoCall.FindStringSubmatch(stmt); m != nil {
			fields, ok := structs[m[2]]
			if !ok {
				return fmt.Errorf("%w: struct %q", engine.ErrNotFound, m[2])
			}
			rho, ok := vars[m[3]]
			if !ok {
				return fmt.Errorf("%w: variable %q", engine.ErrNotFound, m[3])
			}
			out, err := topoParamsToIndex(fields, rho)
			if err != nil {
				return fmt.Errorf("topoparamstoindex: %w", err)
			}
			vars[m[1]] = out
			continue
		}
		if m := reField.FindStringSubmatch(stmt); m != nil {
			fields, ok := structs[m[1]]
			if !ok {
				continue
			}
			v, err := parseNumbers(m[3])
			if err != nil {
				return fmt.Errorf("%s.%s: %w", m[1], m[2], err)
			}
			fields[m[2]] = v
		}
	}
	return nil
}

func parseNumbers(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func topoParamsToIndex(fields map[string][]float64, rho engine.Array) (engine.Array, error) {
	scalar := func(k string) (float64, error) {
		v, ok := fields[k]
		if !ok || len(v) != 1 {
			return 0, fmt.Errorf("%w: params.%s", engine.ErrNotFound, k)
		}
		return v[0], nil
	}
	levels, ok := fields["eps_levels"]
	if !ok || len(levels) != 2 {
		return engine.Array{}, fmt.Errorf("%w: params.eps_levels needs two values", engine.ErrShape)
	}
	var p density.Params
	var dx, dy float64
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"filter_radius", &p.Radius},
		{"beta", &p.Beta},
		{"eta", &p.Eta},
		{"dx", &dx},
		{"dy", &dy},
	} {
		v, err := scalar(f.key)
		if err != nil {
			return engine.Array{}, err
		}
		*f.dst = v
	}
	if err := p.Validate(); err != nil {
		return engine.Array{}, err
	}
	if len(rho.Shape) != 2 {
		return engine.Array{}, fmt.Errorf("%w: density must be 2-D, got %v", engine.ErrShape, rho.Shape)
	}
	b := material.Bounds{LowerEpsilon: levels[0], HigherEpsilon: levels[1]}
	nx, ny := rho.Shape[0], rho.Shape[1]
	eps := density.ToPermittivity(mat.NewDense(nx, ny, append([]float64(nil), rho.Data...)), p, dx, dy, b)
	out := engine.NewArray(nx, ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			out.Data[i*ny+j] = eps.At(i, j)
		}
	}
	return out, nil
}
