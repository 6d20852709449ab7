// Package bridge carries engine.Session calls over gRPC.
//
// There is no generated code: the service is described by a hand-written
// grpc.ServiceDesc whose unary methods exchange structpb.Struct messages.
// Server exposes any engine.Session; Client implements engine.Session against
// a remote Server.
package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/monitoring"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "toporegion.engine.v1.Engine"

var logf = monitoring.Prefixed("bridge")

// DefaultMaxMessageSize bounds one request or reply on both ends. A field
// read for a 101x101x12 region is about 8 MB on the wire, twice gRPC's
// 4 MiB default.
const DefaultMaxMessageSize = 256 << 20

// ServerOptions returns the grpc.Server options that let a Server send and
// receive messages up to maxBytes.
func ServerOptions(maxBytes int) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxBytes),
		grpc.MaxSendMsgSize(maxBytes),
	}
}

// sessionServer is the handler type registered with grpc.
type sessionServer interface {
	session() engine.Session
}

// Server exposes an engine.Session as a gRPC service.
type Server struct {
	sess engine.Session
}

var _ sessionServer = (*Server)(nil)

// NewServer wraps sess.
func NewServer(sess engine.Session) *Server {
	return &Server{sess: sess}
}

func (s *Server) session() engine.Session { return s.sess }

// Register adds the engine service to g.
func (s *Server) Register(g grpc.ServiceRegistrar) {
	g.RegisterService(&ServiceDesc, s)
	logf("registered %s", ServiceName)
}

type unaryFunc func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryFunc) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			sess := srv.(sessionServer).session()
			handler := func(ctx context.Context, req any) (any, error) {
				out, err := call(ctx, sess, req.(*structpb.Struct))
				if err != nil {
					logf("%s failed: %v", name, err)
					return nil, toStatus(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func handleReply(h engine.Handle, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, err
	}
	return message(map[string]*structpb.Value{"handle": encodeHandle(h)}), nil
}

// ServiceDesc describes the engine service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*sessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AddIndexRegion", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			spec, err := decodeMonitor(req)
			if err != nil {
				return nil, err
			}
			return handleReply(sess.AddIndexRegion(ctx, spec))
		}),
		unary("AddFieldRegion", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			spec, err := decodeMonitor(req)
			if err != nil {
				return nil, err
			}
			return handleReply(sess.AddFieldRegion(ctx, spec))
		}),
		unary("AddMeshRegion", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			spec, err := decodeMesh(req)
			if err != nil {
				return nil, err
			}
			return handleReply(sess.AddMeshRegion(ctx, spec))
		}),
		unary("AddImport", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			name, err := getString(req, "name")
			if err != nil {
				return nil, err
			}
			detail, err := getNumber(req, "detail")
			if err != nil {
				return nil, err
			}
			return handleReply(sess.AddImport(ctx, engine.ImportSpec{Name: name, Detail: detail}))
		}),
		unary("ReplaceImport", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			h, data, err := decodeImportData(req)
			if err != nil {
				return nil, err
			}
			return handleReply(sess.ReplaceImport(ctx, h, data))
		}),
		unary("PutV", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			name, err := getString(req, "name")
			if err != nil {
				return nil, err
			}
			a, err := decodeArray(req, "array")
			if err != nil {
				return nil, err
			}
			if err := sess.PutV(ctx, name, a); err != nil {
				return nil, err
			}
			return message(nil), nil
		}),
		unary("GetV", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			name, err := getString(req, "name")
			if err != nil {
				return nil, err
			}
			a, err := sess.GetV(ctx, name)
			if err != nil {
				return nil, err
			}
			return message(map[string]*structpb.Value{"array": encodeArray(a)}), nil
		}),
		unary("Eval", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			script, err := getString(req, "script")
			if err != nil {
				return nil, err
			}
			if err := sess.Eval(ctx, script); err != nil {
				return nil, err
			}
			return message(nil), nil
		}),
		unary("EDistribution", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			h, err := decodeHandle(req, "handle")
			if err != nil {
				return nil, err
			}
			f, err := sess.EDistribution(ctx, h, getBool(req, "with_spatial"))
			if err != nil {
				return nil, err
			}
			return encodeField(f), nil
		}),
		unary("EpsilonDistribution", func(ctx context.Context, sess engine.Session, req *structpb.Struct) (*structpb.Struct, error) {
			h, err := decodeHandle(req, "handle")
			if err != nil {
				return nil, err
			}
			t, err := sess.EpsilonDistribution(ctx, h)
			if err != nil {
				return nil, err
			}
			return message(map[string]*structpb.Value{"epsilon": encodeTensor(*t)}), nil
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "toporegion/engine/v1",
}
