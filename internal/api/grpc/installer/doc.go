// Package installer implements the gRPC transport for remote installs.
//
// The service is described by a hand-written grpc.ServiceDesc whose single
// server-streaming method carries google.protobuf.Struct messages: one
// request naming the sources and destination, then one message per status
// line. Domain errors travel as gRPC status codes.
package installer
