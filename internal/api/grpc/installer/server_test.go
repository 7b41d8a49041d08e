package installer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/modpack-installer/internal/checksum"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
)

var errTestSend = errors.New("test send error")

// fakeService implements Service with a scripted list of messages.
type fakeService struct {
	// messages are reported in order before returning err.
	messages []modpack.StatusMessage
	// err is returned after the messages were reported.
	err error
	// got is the last request received.
	got *modpack.InstallRequest
}

// Install reports the scripted messages and returns the scripted error.
func (f *fakeService) Install(
	_ context.Context,
	req *modpack.InstallRequest,
	onStatus func(modpack.StatusMessage),
) ([]modpack.StatusMessage, error) {
	f.got = req

	for _, message := range f.messages {
		onStatus(message)
	}

	return f.messages, f.err
}

// fakeStream is a grpc.ServerStream collecting sent messages.
type fakeStream struct {
	// sent holds every message passed to SendMsg.
	sent []*structpb.Struct
	// sendErr is returned by SendMsg when set.
	sendErr error
}

func (s *fakeStream) SetHeader(metadata.MD) error  { return nil }
func (s *fakeStream) SendHeader(metadata.MD) error { return nil }
func (s *fakeStream) SetTrailer(metadata.MD)       {}
func (s *fakeStream) Context() context.Context     { return context.Background() }
func (s *fakeStream) RecvMsg(any) error            { return nil }

func (s *fakeStream) SendMsg(m any) error {
	if s.sendErr != nil {
		return s.sendErr
	}

	msg, ok := m.(*structpb.Struct)
	if !ok {
		return fmt.Errorf("unexpected message %T", m) //nolint:err113 // Test-only failure.
	}

	s.sent = append(s.sent, msg)

	return nil
}

func validRequest() *modpack.InstallRequest {
	return &modpack.InstallRequest{
		ManifestPath:    "/srv/src/modrinth.index.json",
		OverridesPath:   "/srv/src/overrides",
		DestinationRoot: "/srv/instances",
		PackName:        "pack",
	}
}

// TestServer_Install_Validation rejects requests that name no pack folder.
func TestServer_Install_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeService))

	err := s.Install(nil, new(fakeStream))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	err = s.Install(RequestToProto(&modpack.InstallRequest{PackName: "pack"}), new(fakeStream))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_Install_StreamsMessages forwards every status message in order.
func TestServer_Install_StreamsMessages(t *testing.T) {
	t.Parallel()

	service := &fakeService{
		messages: []modpack.StatusMessage{
			{Kind: modpack.KindFolderCreated, Path: "/srv/instances/pack"},
			modpack.Verified("/srv/instances/pack/mods/a.jar", nil),
			modpack.DownloadFailed("/srv/instances/pack/mods/b.jar", modpack.ErrNoDownloadURL),
		},
	}
	stream := new(fakeStream)

	require.NoError(t, NewServer(service).Install(RequestToProto(validRequest()), stream))
	require.Equal(t, validRequest(), service.got)
	require.Len(t, stream.sent, 3)

	for i, msg := range stream.sent {
		require.Equal(t, service.messages[i].Kind, StatusFromProto(msg).Kind)
	}
}

// TestServer_Install_Errors maps domain errors and send failures.
func TestServer_Install_Errors(t *testing.T) {
	t.Parallel()

	service := &fakeService{err: fmt.Errorf("/srv/instances/pack: %w", modpack.ErrDestinationExists)}

	err := NewServer(service).Install(RequestToProto(validRequest()), new(fakeStream))
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	service = &fakeService{messages: []modpack.StatusMessage{{Kind: modpack.KindFolderCreated}}}

	err = NewServer(service).Install(RequestToProto(validRequest()), &fakeStream{sendErr: errTestSend})
	require.ErrorIs(t, err, errTestSend)
}

// TestStatusProto_Roundtrip keeps outcome details across the wire.
func TestStatusProto_Roundtrip(t *testing.T) {
	t.Parallel()

	checks := []checksum.Check{
		{Algorithm: checksum.AlgorithmSHA1, Expected: "aa", Computed: "aa", Match: true},
		{Algorithm: checksum.AlgorithmSHA512, Expected: "bb", Computed: "cc", Match: false},
	}
	original := modpack.HashMismatch("/srv/instances/pack/mods/a.jar", checks)

	wire := StatusToProto(original)
	require.Equal(t, original.String(), wire.GetFields()[fieldText].GetStringValue())

	// Survive a real protobuf encoding.
	data, err := proto.Marshal(wire)
	require.NoError(t, err)

	decoded := new(structpb.Struct)
	require.NoError(t, proto.Unmarshal(data, decoded))

	got := StatusFromProto(decoded)
	require.Equal(t, original.Kind, got.Kind)
	require.Equal(t, original.Path, got.Path)
	require.Equal(t, original.Outcome.Verification, got.Outcome.Verification)
	require.Equal(t, checks, got.Outcome.Checks)
	require.Equal(t, original.String(), got.String())

	failed := StatusFromProto(StatusToProto(modpack.DownloadFailed("x.jar", modpack.ErrNoDownloadURL)))
	require.False(t, failed.Outcome.Success)
	require.EqualError(t, failed.Outcome.Err, modpack.ErrNoDownloadURL.Error())

	plain := StatusFromProto(StatusToProto(modpack.StatusMessage{Kind: modpack.KindManifestDeleted}))
	require.Nil(t, plain.Outcome)
}

// TestStatusJSON renders one line that decodes back into the same message.
func TestStatusJSON(t *testing.T) {
	t.Parallel()

	checks := []checksum.Check{
		{Algorithm: checksum.AlgorithmSHA1, Expected: "aa", Computed: "aa", Match: true},
	}
	original := modpack.Verified("/srv/instances/pack/mods/a.jar", checks)

	data, err := StatusJSON(original)
	require.NoError(t, err)
	require.NotContains(t, string(data), "\n")

	decoded := new(structpb.Struct)
	require.NoError(t, protojson.Unmarshal(data, decoded))

	got := StatusFromProto(decoded)
	require.Equal(t, modpack.KindVerified, got.Kind)
	require.Equal(t, checks, got.Outcome.Checks)
	require.Equal(t, original.String(), got.String())
}

// TestErrorStatusMapping converts domain errors to codes and back.
func TestErrorStatusMapping(t *testing.T) {
	t.Parallel()

	require.NoError(t, ErrorToStatus(nil))
	require.NoError(t, ErrorFromStatus(nil))

	sentinels := map[error]codes.Code{
		modpack.ErrDestinationExists: codes.AlreadyExists,
		modpack.ErrPackInUse:         codes.FailedPrecondition,
		modpack.ErrInvalidRequest:    codes.InvalidArgument,
		context.Canceled:             codes.Canceled,
	}

	for sentinel, code := range sentinels {
		wire := ErrorToStatus(fmt.Errorf("wrapped: %w", sentinel))
		require.Equal(t, code, status.Code(wire))
		require.ErrorIs(t, ErrorFromStatus(wire), sentinel)
	}

	internal := ErrorToStatus(modpack.ErrMergeFailed)
	require.Equal(t, codes.Internal, status.Code(internal))
	require.Equal(t, internal, ErrorFromStatus(internal))
}
