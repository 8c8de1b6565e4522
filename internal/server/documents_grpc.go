package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "legaldocs.v1.DocumentsService"

// Method names exposed by DocumentsService.
const (
	MethodUploadDocument  = "UploadDocument"
	MethodProcessDocument = "ProcessDocument"
	MethodGetDocument     = "GetDocument"
	MethodListDocuments   = "ListDocuments"
	MethodExportDocument  = "ExportDocument"
	MethodDeleteDocument  = "DeleteDocument"
)

// DocumentsServer is the server API. Requests and responses are google.protobuf.Struct
// messages so clients need no generated stubs.
type DocumentsServer interface {
	UploadDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(DocumentsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DocumentsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DocumentsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DocumentsServiceDesc describes DocumentsService for grpc.Server.RegisterService.
var DocumentsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodUploadDocument, Handler: unaryHandler(MethodUploadDocument, DocumentsServer.UploadDocument)},
		{MethodName: MethodProcessDocument, Handler: unaryHandler(MethodProcessDocument, DocumentsServer.ProcessDocument)},
		{MethodName: MethodGetDocument, Handler: unaryHandler(MethodGetDocument, DocumentsServer.GetDocument)},
		{MethodName: MethodListDocuments, Handler: unaryHandler(MethodListDocuments, DocumentsServer.ListDocuments)},
		{MethodName: MethodExportDocument, Handler: unaryHandler(MethodExportDocument, DocumentsServer.ExportDocument)},
		{MethodName: MethodDeleteDocument, Handler: unaryHandler(MethodDeleteDocument, DocumentsServer.DeleteDocument)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "legaldocs/v1/documents.proto",
}

func RegisterDocumentsServer(s grpc.ServiceRegistrar, srv DocumentsServer) {
	s.RegisterService(&DocumentsServiceDesc, srv)
}

// FullMethod returns the "/service/method" path used on the wire.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// DocumentsClient calls DocumentsService over any client connection.
type DocumentsClient struct {
	cc grpc.ClientConnInterface
}

func NewDocumentsClient(cc grpc.ClientConnInterface) *DocumentsClient {
	return &DocumentsClient{cc: cc}
}

// Call invokes method with a request built from fields.
func (c *DocumentsClient) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
