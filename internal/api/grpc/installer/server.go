package installer

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/modpack-installer/internal/domain/modpack"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "modpack.v1.InstallerService"
	// InstallMethod is the full method name of the install stream.
	InstallMethod = "/" + ServiceName + "/Install"
)

// Service abstracts the business operation the transport layer depends on.
type Service interface {
	Install(
		ctx context.Context,
		req *modpack.InstallRequest,
		onStatus func(modpack.StatusMessage),
	) ([]modpack.StatusMessage, error)
}

// installerServer is the handler type checked by grpc.Server.RegisterService.
type installerServer interface {
	Install(req *structpb.Struct, stream grpc.ServerStream) error
}

// ServiceDesc describes InstallerService for grpc.Server and for client streams.
//
//nolint:gochecknoglobals // gRPC service descriptors are package-level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*installerServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Install",
			Handler:       installHandler,
			ServerStreams: true,
		},
	},
	Metadata: "modpack/v1/installer.proto",
}

// Server implements InstallerService on top of a Service.
type Server struct {
	// service performs the installs.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Register adds the service to a gRPC server.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&ServiceDesc, s)
}

// Install runs the requested install and streams every status message.
func (s *Server) Install(req *structpb.Struct, stream grpc.ServerStream) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}

	request := RequestFromProto(req)
	if err := request.Validate(); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	// Status callbacks are serialised by the installer, so SendMsg is never
	// called from two goroutines at once.
	var sendErr error

	_, err := s.service.Install(stream.Context(), request, func(message modpack.StatusMessage) {
		if sendErr != nil {
			return
		}

		sendErr = stream.SendMsg(StatusToProto(message))
	})
	if err != nil {
		return ErrorToStatus(err)
	}

	return sendErr
}

func installHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	server, ok := srv.(installerServer)
	if !ok {
		return status.Error(codes.Unimplemented, "install is not implemented")
	}

	return server.Install(req, stream)
}
