package bridge

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/toporegion/internal/config"
	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/engine/memengine"
	"github.com/banshee-data/toporegion/internal/region"
	"github.com/banshee-data/toporegion/internal/region/grid"
)

func serve(t *testing.T, sess engine.Session, opts ...grpc.ServerOption) *Client {
	t.Helper()
	return dialBufconn(t, listenBufconn(t, sess, opts...))
}

func listenBufconn(t *testing.T, sess engine.Session, opts ...grpc.ServerOption) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(append(ServerOptions(DefaultMaxMessageSize), opts...)...)
	NewServer(sess).Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis
}

func dialBufconn(t *testing.T, lis *bufconn.Listener, opts ...grpc.DialOption) *Client {
	t.Helper()
	opts = append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	c, err := Dial("passthrough:///bufnet", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func regionOptions() region.Options {
	o := region.DefaultOptions(region.Extruded2D, grid.Point{X: 0, Y: 0}, grid.Point{X: 0.2, Y: 0.1})
	o.Filter.Radius = 0.05
	return o
}

func design(r *region.Region) *mat.Dense {
	m := mat.NewDense(r.XSize(), r.YSize(), nil)
	for i := 0; i < r.XSize(); i++ {
		for j := 0; j < r.YSize(); j++ {
			m.Set(i, j, float64((i+j)%3)/2)
		}
	}
	return m
}

func TestBridge_RegionParity(t *testing.T) {
	ctx := context.Background()
	cfg := memengine.Config{Frequencies: 2, BackgroundIndex: 1.444}

	direct, err := region.New(ctx, memengine.New(cfg), regionOptions())
	require.NoError(t, err)

	remoteSession := memengine.New(cfg)
	remote, err := region.New(ctx, serve(t, remoteSession), regionOptions())
	require.NoError(t, err)

	require.NoError(t, direct.Update(ctx, design(direct)))
	require.NoError(t, remote.Update(ctx, design(remote)))

	wantEps, err := direct.EpsilonDistribution(ctx)
	require.NoError(t, err)
	gotEps, err := remote.EpsilonDistribution(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(wantEps, gotEps); diff != "" {
		t.Errorf("epsilon mismatch (-direct +remote):\n%s", diff)
	}

	wantField, err := direct.EDistributionWithSpatial(ctx)
	require.NoError(t, err)
	gotField, err := remote.EDistributionWithSpatial(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(wantField, gotField); diff != "" {
		t.Errorf("field mismatch (-direct +remote):\n%s", diff)
	}

	plain, err := remote.EDistribution(ctx)
	require.NoError(t, err)
	assert.Nil(t, plain.X)

	imp, ok := remoteSession.ImportData(remote.Name())
	require.True(t, ok)
	assert.Equal(t, []int{11, 6, 2}, imp.Index.Shape)
}

func TestBridge_DefaultSize3DRegion(t *testing.T) {
	ctx := context.Background()
	cfg := config.EmptyRegionConfig()
	variant := config.Variant3D
	cfg.Variant = &variant

	opts, err := region.OptionsFromConfig(cfg)
	require.NoError(t, err)
	sess := memengine.New(memengine.Config{
		Frequencies:     cfg.GetEngineFrequencies(),
		BackgroundIndex: cfg.GetEngineBackgroundIndex(),
	})
	lis := listenBufconn(t, sess)

	r, err := region.New(ctx, dialBufconn(t, lis), opts)
	require.NoError(t, err)
	require.Equal(t, []int{101, 101, 12}, []int{r.XSize(), r.YSize(), r.ZSize()})
	require.NoError(t, r.Update(ctx, design(r)))

	field, err := r.EDistribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{101, 101, 12, 1, 3}, field.E.Shape)

	eps, err := r.EpsilonDistribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{101, 101, 12}, eps.Shape[:3])

	// The same read fails on a client held to gRPC's stock 4 MiB limit.
	small := dialBufconn(t, lis, WithMaxMessageSize(4<<20))
	var fieldHandle engine.Handle
	for _, h := range r.Handles() {
		if h.Kind == engine.KindFieldMonitor {
			fieldHandle = h
		}
	}
	_, err = small.EDistribution(ctx, fieldHandle, false)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestServerOptions(t *testing.T) {
	assert.Len(t, ServerOptions(DefaultMaxMessageSize), 2)
}

func TestBridge_EngineMapper(t *testing.T) {
	ctx := context.Background()
	o := regionOptions()
	o.Mapper = region.EngineMapper{}
	r, err := region.New(ctx, serve(t, memengine.New(memengine.DefaultConfig())), o)
	require.NoError(t, err)
	require.NoError(t, r.Update(ctx, design(r)))

	vol, err := r.Permittivity()
	require.NoError(t, err)
	for _, eps := range vol.Data {
		assert.True(t, r.Bounds().Contains(eps))
	}
}

func TestBridge_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	c := serve(t, memengine.New(memengine.DefaultConfig()))

	spec := engine.MonitorSpec{Name: "m", Box: engine.Box{XMax: 1e-6, YMax: 1e-6}, Dimension: engine.Dim2D}
	h, err := c.AddIndexRegion(ctx, spec)
	require.NoError(t, err)
	assert.True(t, h.Valid())

	_, err = c.AddFieldRegion(ctx, spec)
	assert.ErrorIs(t, err, engine.ErrNameCollision)

	_, err = c.GetV(ctx, "nope")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	_, err = c.EDistribution(ctx, h, false)
	assert.ErrorIs(t, err, engine.ErrNotFound, "index monitor is not a field monitor")

	err = c.PutV(ctx, "bad", engine.Array{Shape: []int{3}, Data: []float64{1}})
	assert.ErrorIs(t, err, engine.ErrShape)

	require.NoError(t, c.Eval(ctx, `select("m");`))
	require.NoError(t, c.PutV(ctx, "v", engine.Vector([]float64{1, 2, 3})))
	got, err := c.GetV(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got.Data)
}

func TestBridge_Interceptor(t *testing.T) {
	var calls atomic.Int32
	count := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		calls.Add(1)
		assert.Contains(t, info.FullMethod, ServiceName)
		return handler(ctx, req)
	}
	c := serve(t, memengine.New(memengine.DefaultConfig()), grpc.UnaryInterceptor(count))
	_, err := c.AddImport(context.Background(), engine.ImportSpec{Name: "geo", Detail: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{engine.ErrNameCollision, codes.AlreadyExists},
		{engine.ErrNotFound, codes.NotFound},
		{engine.ErrShape, codes.InvalidArgument},
		{engine.ErrUnsupported, codes.Unimplemented},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		st := toStatus(tt.err)
		assert.Equal(t, tt.code, status.Code(st), "%v", tt.err)
		if tt.code != codes.Internal {
			assert.ErrorIs(t, fromStatus(st), tt.err)
		}
	}
	assert.NoError(t, toStatus(nil))
	assert.NoError(t, fromStatus(nil))

	already := status.Error(codes.NotFound, "x")
	assert.Equal(t, already, toStatus(already))
	plain := errors.New("plain")
	assert.Equal(t, plain, fromStatus(plain))
}

func TestCodec_RoundTrip(t *testing.T) {
	h := engine.Handle{ID: "id-1", Name: "r", Kind: engine.KindImport}
	data := engine.ImportData{
		Index: engine.Array{Shape: []int{2, 1, 1}, Data: []float64{1.5, 2.5}},
		X:     []float64{0, 1e-6},
		Y:     []float64{0},
		Z:     []float64{-1e-7},
	}
	gotH, gotData, err := decodeImportData(encodeImportData(h, data))
	require.NoError(t, err)
	assert.Equal(t, h, gotH)
	assert.Equal(t, data, gotData)

	tn := engine.NewTensor(1, 2)
	tn.Set(complex(1, -2), 0, 1)
	msg := message(map[string]*structpb.Value{"t": encodeTensor(tn)})
	gotT, err := decodeTensor(msg, "t")
	require.NoError(t, err)
	assert.Equal(t, tn, gotT)
}

func TestCodec_Malformed(t *testing.T) {
	tests := []struct {
		name string
		msg  *structpb.Struct
	}{
		{"missing name", message(map[string]*structpb.Value{"box": encodeBox(engine.Box{})})},
		{"name not a string", message(map[string]*structpb.Value{"name": num(1)})},
		{"missing box", message(map[string]*structpb.Value{"name": str("m")})},
		{"box not a struct", func() *structpb.Struct {
			m := encodeMonitor(engine.MonitorSpec{Name: "m"})
			m.Fields["box"] = str("not a box")
			return m
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeMonitor(tt.msg)
			assert.ErrorIs(t, err, engine.ErrShape)
		})
	}

	bad := message(map[string]*structpb.Value{"a": object(map[string]*structpb.Value{
		"shape": floatList([]float64{1.5}),
		"data":  floatList([]float64{1}),
	})})
	_, err := decodeArray(bad, "a")
	assert.ErrorIs(t, err, engine.ErrShape)

	short := message(map[string]*structpb.Value{"a": encodeArray(engine.Array{Shape: []int{2}, Data: []float64{1}})})
	_, err = decodeArray(short, "a")
	assert.ErrorIs(t, err, engine.ErrShape)
}
