package bridge

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/toporegion/internal/engine"
)

// Messages are structpb.Struct values. Arrays travel as {shape, data}
// number lists; complex tensors as {shape, re, im}.

func malformed(field string) error {
	return fmt.Errorf("%w: malformed or missing field %q", engine.ErrShape, field)
}

func num(v float64) *structpb.Value { return structpb.NewNumberValue(v) }

func str(s string) *structpb.Value { return structpb.NewStringValue(s) }

func object(fields map[string]*structpb.Value) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func message(fields map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: fields}
}

func floatList(xs []float64) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = num(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func intList(xs []int) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = num(float64(x))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func field(s *structpb.Struct, key string) (*structpb.Value, error) {
	v, ok := s.GetFields()[key]
	if !ok || v == nil {
		return nil, malformed(key)
	}
	return v, nil
}

func getString(s *structpb.Struct, key string) (string, error) {
	v, err := field(s, key)
	if err != nil {
		return "", err
	}
	if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
		return "", malformed(key)
	}
	return v.GetStringValue(), nil
}

func getNumber(s *structpb.Struct, key string) (float64, error) {
	v, err := field(s, key)
	if err != nil {
		return 0, err
	}
	if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
		return 0, malformed(key)
	}
	return v.GetNumberValue(), nil
}

func getBool(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

func getStruct(s *structpb.Struct, key string) (*structpb.Struct, error) {
	v, err := field(s, key)
	if err != nil {
		return nil, err
	}
	sv := v.GetStructValue()
	if sv == nil {
		return nil, malformed(key)
	}
	return sv, nil
}

// getFloats returns nil when key is absent.
func getFloats(s *structpb.Struct, key string) ([]float64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	lv := v.GetListValue()
	if lv == nil {
		return nil, malformed(key)
	}
	out := make([]float64, len(lv.GetValues()))
	for i, e := range lv.GetValues() {
		if _, ok := e.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, malformed(key)
		}
		out[i] = e.GetNumberValue()
	}
	return out, nil
}

func getInts(s *structpb.Struct, key string) ([]int, error) {
	fs, err := getFloats(s, key)
	if err != nil {
		return nil, err
	}
	if fs == nil {
		return nil, malformed(key)
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
			return nil, malformed(key)
		}
		out[i] = int(f)
	}
	return out, nil
}

func encodeHandle(h engine.Handle) *structpb.Value {
	return object(map[string]*structpb.Value{
		"id":   str(h.ID),
		"name": str(h.Name),
		"kind": str(string(h.Kind)),
	})
}

func decodeHandle(s *structpb.Struct, key string) (engine.Handle, error) {
	hs, err := getStruct(s, key)
	if err != nil {
		return engine.Handle{}, err
	}
	var h engine.Handle
	var kind string
	if h.ID, err = getString(hs, "id"); err != nil {
		return engine.Handle{}, err
	}
	if h.Name, err = getString(hs, "name"); err != nil {
		return engine.Handle{}, err
	}
	if kind, err = getString(hs, "kind"); err != nil {
		return engine.Handle{}, err
	}
	h.Kind = engine.ObjectKind(kind)
	return h, nil
}

func encodeBox(b engine.Box) *structpb.Value {
	return object(map[string]*structpb.Value{
		"x_min": num(b.XMin), "x_max": num(b.XMax),
		"y_min": num(b.YMin), "y_max": num(b.YMax),
		"z_min": num(b.ZMin), "z_max": num(b.ZMax),
	})
}

func decodeBox(s *structpb.Struct, key string) (engine.Box, error) {
	bs, err := getStruct(s, key)
	if err != nil {
		return engine.Box{}, err
	}
	var b engine.Box
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"x_min", &b.XMin}, {"x_max", &b.XMax},
		{"y_min", &b.YMin}, {"y_max", &b.YMax},
		{"z_min", &b.ZMin}, {"z_max", &b.ZMax},
	} {
		if *f.dst, err = getNumber(bs, f.key); err != nil {
			return engine.Box{}, err
		}
	}
	return b, nil
}

func encodeArray(a engine.Array) *structpb.Value {
	return object(map[string]*structpb.Value{
		"shape": intList(a.Shape),
		"data":  floatList(a.Data),
	})
}

func decodeArray(s *structpb.Struct, key string) (engine.Array, error) {
	as, err := getStruct(s, key)
	if err != nil {
		return engine.Array{}, err
	}
	shape, err := getInts(as, "shape")
	if err != nil {
		return engine.Array{}, err
	}
	data, err := getFloats(as, "data")
	if err != nil {
		return engine.Array{}, err
	}
	a := engine.Array{Shape: shape, Data: data}
	if err := a.Validate(); err != nil {
		return engine.Array{}, err
	}
	return a, nil
}

func encodeTensor(t engine.Tensor) *structpb.Value {
	re := make([]float64, len(t.Data))
	im := make([]float64, len(t.Data))
	for i, c := range t.Data {
		re[i], im[i] = real(c), imag(c)
	}
	return object(map[string]*structpb.Value{
		"shape": intList(t.Shape),
		"re":    floatList(re),
		"im":    floatList(im),
	})
}

func decodeTensor(s *structpb.Struct, key string) (engine.Tensor, error) {
	ts, err := getStruct(s, key)
	if err != nil {
		return engine.Tensor{}, err
	}
	shape, err := getInts(ts, "shape")
	if err != nil {
		return engine.Tensor{}, err
	}
	re, err := getFloats(ts, "re")
	if err != nil {
		return engine.Tensor{}, err
	}
	im, err := getFloats(ts, "im")
	if err != nil {
		return engine.Tensor{}, err
	}
	if len(re) != len(im) {
		return engine.Tensor{}, malformed("im")
	}
	t := engine.Tensor{Shape: shape, Data: make([]complex128, len(re))}
	for i := range re {
		t.Data[i] = complex(re[i], im[i])
	}
	if err := t.Validate(); err != nil {
		return engine.Tensor{}, err
	}
	return t, nil
}

func encodeMonitor(spec engine.MonitorSpec) *structpb.Struct {
	return message(map[string]*structpb.Value{
		"name":                  str(spec.Name),
		"box":                   encodeBox(spec.Box),
		"dimension":             num(float64(spec.Dimension)),
		"spatial_interpolation": str(spec.SpatialInterpolation),
	})
}

func decodeMonitor(s *structpb.Struct) (engine.MonitorSpec, error) {
	var spec engine.MonitorSpec
	var err error
	if spec.Name, err = getString(s, "name"); err != nil {
		return spec, err
	}
	if spec.Box, err = decodeBox(s, "box"); err != nil {
		return spec, err
	}
	dim, err := getNumber(s, "dimension")
	if err != nil {
		return spec, err
	}
	spec.Dimension = engine.Dimension(dim)
	spec.SpatialInterpolation, _ = getString(s, "spatial_interpolation")
	return spec, nil
}

func encodeMesh(spec engine.MeshSpec) *structpb.Struct {
	return message(map[string]*structpb.Value{
		"name": str(spec.Name),
		"box":  encodeBox(spec.Box),
		"dx":   num(spec.DX),
		"dy":   num(spec.DY),
		"dz":   num(spec.DZ),
	})
}

func decodeMesh(s *structpb.Struct) (engine.MeshSpec, error) {
	var spec engine.MeshSpec
	var err error
	if spec.Name, err = getString(s, "name"); err != nil {
		return spec, err
	}
	if spec.Box, err = decodeBox(s, "box"); err != nil {
		return spec, err
	}
	if spec.DX, err = getNumber(s, "dx"); err != nil {
		return spec, err
	}
	if spec.DY, err = getNumber(s, "dy"); err != nil {
		return spec, err
	}
	if spec.DZ, err = getNumber(s, "dz"); err != nil {
		return spec, err
	}
	return spec, nil
}

func encodeImportData(h engine.Handle, d engine.ImportData) *structpb.Struct {
	return message(map[string]*structpb.Value{
		"handle": encodeHandle(h),
		"index":  encodeArray(d.Index),
		"x":      floatList(d.X),
		"y":      floatList(d.Y),
		"z":      floatList(d.Z),
	})
}

func decodeImportData(s *structpb.Struct) (engine.Handle, engine.ImportData, error) {
	var d engine.ImportData
	h, err := decodeHandle(s, "handle")
	if err != nil {
		return h, d, err
	}
	if d.Index, err = decodeArray(s, "index"); err != nil {
		return h, d, err
	}
	for _, f := range []struct {
		key string
		dst *[]float64
	}{{"x", &d.X}, {"y", &d.Y}, {"z", &d.Z}} {
		if *f.dst, err = getFloats(s, f.key); err != nil {
			return h, d, err
		}
		if *f.dst == nil {
			return h, d, malformed(f.key)
		}
	}
	return h, d, nil
}

func encodeField(f *engine.FieldData) *structpb.Struct {
	fields := map[string]*structpb.Value{"e": encodeTensor(f.E)}
	if f.X != nil {
		fields["x"] = floatList(f.X)
		fields["y"] = floatList(f.Y)
		fields["z"] = floatList(f.Z)
	}
	return message(fields)
}

func decodeField(s *structpb.Struct) (*engine.FieldData, error) {
	e, err := decodeTensor(s, "e")
	if err != nil {
		return nil, err
	}
	out := &engine.FieldData{E: e}
	if out.X, err = getFloats(s, "x"); err != nil {
		return nil, err
	}
	if out.Y, err = getFloats(s, "y"); err != nil {
		return nil, err
	}
	if out.Z, err = getFloats(s, "z"); err != nil {
		return nil, err
	}
	return out, nil
}
