package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
)

// RequestIDHeader is the metadata key carrying a caller-chosen request ID.
const RequestIDHeader = "x-request-id"

// NewGRPCServer registers the extraction and health services.
func NewGRPCServer(svc ExtractionServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(RequestLogger(logger))}, opts...)
	s := grpc.NewServer(opts...)

	// Health service
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	RegisterExtractionServer(s, svc)
	return s, hs
}

// RequestLogger stamps each call with a request ID (from metadata or a new
// UUID), echoes it in the response header and logs the outcome.
func RequestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				reqID = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, reqID))

		resp, err := handler(ctx, req)

		attrs := []any{
			"method", info.FullMethod,
			"request_id", reqID,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Warn("grpc.request.failed", append(attrs, "err", err)...)
		} else {
			logger.Info("grpc.request", attrs...)
		}
		return resp, err
	}
}
