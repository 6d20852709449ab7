package engine

import (
	"fmt"
	"strings"
)

// Script variable names shared by the topology update protocol.
const (
	VarDensity      = "topo_rho"
	VarPermittivity = "eps_geo"
	VarX            = "x_geo"
	VarY            = "y_geo"
	VarZ            = "z_geo"
)

// TopoParams are the arguments of the engine's topoparamstoindex routine.
// Lengths are metres.
type TopoParams struct {
	EpsLevels    [2]float64
	FilterRadius float64
	Beta         float64
	Eta          float64
	DX, DY, DZ   float64
}

// SelectAndSet returns a statement selecting name and setting key to a string value.
func SelectAndSet(name, key, value string) string {
	return fmt.Sprintf("select(%s);set(%s,%s);", quote(name), quote(key), quote(value))
}

// TopoParamsToIndex builds the statement that filters and projects VarDensity
// into VarPermittivity.
func TopoParamsToIndex(p TopoParams) string {
	var b strings.Builder
	b.WriteString("params = struct;")
	fmt.Fprintf(&b, "params.eps_levels=[%s,%s];", num(p.EpsLevels[0]), num(p.EpsLevels[1]))
	fmt.Fprintf(&b, "params.filter_radius = %s;", num(p.FilterRadius))
	fmt.Fprintf(&b, "params.beta = %s;", num(p.Beta))
	fmt.Fprintf(&b, "params.eta = %s;", num(p.Eta))
	fmt.Fprintf(&b, "params.dx = %s;", num(p.DX))
	fmt.Fprintf(&b, "params.dy = %s;", num(p.DY))
	fmt.Fprintf(&b, "params.dz = %s;", num(p.DZ))
	fmt.Fprintf(&b, "%s = topoparamstoindex(params,%s);", VarPermittivity, VarDensity)
	return b.String()
}

// AddImportScript creates an empty import object called name.
func AddImportScript(name string, detail float64) string {
	return fmt.Sprintf("addimport;set(\"detail\",%s);set(\"name\",%s);", num(detail), quote(name))
}

// ReplaceImportScript deletes the import called name, recreates it and
// imports sqrt(VarPermittivity) on the (VarX, VarY, VarZ) lattice.
func ReplaceImportScript(name string) string {
	return fmt.Sprintf("select(%s);delete;addimport;set(\"name\",%s);importnk2(sqrt(%s),%s,%s,%s);",
		quote(name), quote(name), VarPermittivity, VarX, VarY, VarZ)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func num(v float64) string {
	return fmt.Sprintf("%.12g", v)
}
