package server

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages travel as google.protobuf.Struct so the service needs no
// generated code; fields follow the JSON shapes of the Go types.
const (
	ServiceName                   = "receipts.v1.ExtractionService"
	ExtractMethod                 = "/" + ServiceName + "/Extract"
	ListNeedingVerificationMethod = "/" + ServiceName + "/ListNeedingVerification"
	ExportXLSXMethod              = "/" + ServiceName + "/ExportXLSX"
)

type ExtractionServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListNeedingVerification(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportXLSX(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&extractionServiceDesc, srv)
}

var extractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: unary(ExtractMethod, ExtractionServer.Extract)},
		{MethodName: "ListNeedingVerification", Handler: unary(ListNeedingVerificationMethod, ExtractionServer.ListNeedingVerification)},
		{MethodName: "ExportXLSX", Handler: unary(ExportXLSXMethod, ExtractionServer.ExportXLSX)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "receipts/v1/extraction.proto",
}

type unaryMethod func(ExtractionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExtractionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExtractionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ExtractionClient calls ExtractionService with typed request and response values.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) Extract(ctx context.Context, req ExtractRequest, opts ...grpc.CallOption) (ExtractResponse, error) {
	var out ExtractResponse
	err := c.invoke(ctx, ExtractMethod, req, &out, opts...)
	return out, err
}

func (c *ExtractionClient) ListNeedingVerification(ctx context.Context, req ListRequest, opts ...grpc.CallOption) (ListResponse, error) {
	var out ListResponse
	err := c.invoke(ctx, ListNeedingVerificationMethod, req, &out, opts...)
	return out, err
}

func (c *ExtractionClient) ExportXLSX(ctx context.Context, req ExportRequest, opts ...grpc.CallOption) (ExportResponse, error) {
	var out ExportResponse
	err := c.invoke(ctx, ExportXLSXMethod, req, &out, opts...)
	return out, err
}

func (c *ExtractionClient) invoke(ctx context.Context, method string, req, out any, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, resp, opts...); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
