package bridge

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/toporegion/internal/engine"
)

// Client is an engine.Session backed by a remote Server.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

var _ engine.Session = (*Client)(nil)

// NewClient uses an existing connection. Close does not close cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithMaxMessageSize sets the per-call send and receive limits.
func WithMaxMessageSize(maxBytes int) grpc.DialOption {
	return grpc.WithDefaultCallOptions(
		grpc.MaxCallRecvMsgSize(maxBytes),
		grpc.MaxCallSendMsgSize(maxBytes),
	)
}

// Dial connects to target. Without options the connection is plaintext.
// Calls carry DefaultMaxMessageSize limits unless opts set their own.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	opts = append([]grpc.DialOption{WithMaxMessageSize(DefaultMaxMessageSize)}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial engine %s: %w", target, err)
	}
	logf("client connecting to %s", target)
	return &Client{cc: conn, conn: conn}, nil
}

// Close releases the connection created by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out); err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

func (c *Client) handleCall(ctx context.Context, method string, req *structpb.Struct) (engine.Handle, error) {
	out, err := c.invoke(ctx, method, req)
	if err != nil {
		return engine.Handle{}, err
	}
	return decodeHandle(out, "handle")
}

// AddIndexRegion implements engine.Session.
func (c *Client) AddIndexRegion(ctx context.Context, spec engine.MonitorSpec) (engine.Handle, error) {
	return c.handleCall(ctx, "AddIndexRegion", encodeMonitor(spec))
}

// AddFieldRegion implements engine.Session.
func (c *Client) AddFieldRegion(ctx context.Context, spec engine.MonitorSpec) (engine.Handle, error) {
	return c.handleCall(ctx, "AddFieldRegion", encodeMonitor(spec))
}

// AddMeshRegion implements engine.Session.
func (c *Client) AddMeshRegion(ctx context.Context, spec engine.MeshSpec) (engine.Handle, error) {
	return c.handleCall(ctx, "AddMeshRegion", encodeMesh(spec))
}

// AddImport implements engine.Session.
func (c *Client) AddImport(ctx context.Context, spec engine.ImportSpec) (engine.Handle, error) {
	return c.handleCall(ctx, "AddImport", message(map[string]*structpb.Value{
		"name":   str(spec.Name),
		"detail": num(spec.Detail),
	}))
}

// ReplaceImport implements engine.Session.
func (c *Client) ReplaceImport(ctx context.Context, h engine.Handle, data engine.ImportData) (engine.Handle, error) {
	return c.handleCall(ctx, "ReplaceImport", encodeImportData(h, data))
}

// PutV implements engine.Session.
func (c *Client) PutV(ctx context.Context, name string, a engine.Array) error {
	_, err := c.invoke(ctx, "PutV", message(map[string]*structpb.Value{
		"name":  str(name),
		"array": encodeArray(a),
	}))
	return err
}

// GetV implements engine.Session.
func (c *Client) GetV(ctx context.Context, name string) (engine.Array, error) {
	out, err := c.invoke(ctx, "GetV", message(map[string]*structpb.Value{"name": str(name)}))
	if err != nil {
		return engine.Array{}, err
	}
	return decodeArray(out, "array")
}

// Eval implements engine.Session.
func (c *Client) Eval(ctx context.Context, script string) error {
	_, err := c.invoke(ctx, "Eval", message(map[string]*structpb.Value{"script": str(script)}))
	return err
}

// EDistribution implements engine.Session.
func (c *Client) EDistribution(ctx context.Context, h engine.Handle, withSpatial bool) (*engine.FieldData, error) {
	out, err := c.invoke(ctx, "EDistribution", message(map[string]*structpb.Value{
		"handle":       encodeHandle(h),
		"with_spatial": structpb.NewBoolValue(withSpatial),
	}))
	if err != nil {
		return nil, err
	}
	return decodeField(out)
}

// EpsilonDistribution implements engine.Session.
func (c *Client) EpsilonDistribution(ctx context.Context, h engine.Handle) (*engine.Tensor, error) {
	out, err := c.invoke(ctx, "EpsilonDistribution", message(map[string]*structpb.Value{"handle": encodeHandle(h)}))
	if err != nil {
		return nil, err
	}
	t, err := decodeTensor(out, "epsilon")
	if err != nil {
		return nil, err
	}
	return &t, nil
}
