package installer

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/modpack-installer/internal/checksum"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
)

// Wire field names.
const (
	fieldManifestPath    = "manifest_path"
	fieldOverridesPath   = "overrides_path"
	fieldDestinationRoot = "destination_root"
	fieldPackName        = "pack_name"

	fieldKind         = "kind"
	fieldPath         = "path"
	fieldText         = "text"
	fieldSuccess      = "success"
	fieldVerification = "verification"
	fieldError        = "error"
	fieldChecks       = "checks"

	fieldAlgorithm = "algorithm"
	fieldExpected  = "expected"
	fieldComputed  = "computed"
	fieldMatch     = "match"
)

// RequestToProto converts an install request into its wire form.
func RequestToProto(req *modpack.InstallRequest) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldManifestPath:    structpb.NewStringValue(req.ManifestPath),
			fieldOverridesPath:   structpb.NewStringValue(req.OverridesPath),
			fieldDestinationRoot: structpb.NewStringValue(req.DestinationRoot),
			fieldPackName:        structpb.NewStringValue(req.PackName),
		},
	}
}

// RequestFromProto converts the wire form back into an install request.
// Missing fields are left empty.
func RequestFromProto(msg *structpb.Struct) *modpack.InstallRequest {
	fields := msg.GetFields()

	return &modpack.InstallRequest{
		ManifestPath:    fields[fieldManifestPath].GetStringValue(),
		OverridesPath:   fields[fieldOverridesPath].GetStringValue(),
		DestinationRoot: fields[fieldDestinationRoot].GetStringValue(),
		PackName:        fields[fieldPackName].GetStringValue(),
	}
}

// StatusToProto converts a status message into its wire form.
func StatusToProto(message modpack.StatusMessage) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldKind: structpb.NewStringValue(message.Kind.String()),
		fieldPath: structpb.NewStringValue(message.Path),
		fieldText: structpb.NewStringValue(message.String()),
	}

	if outcome := message.Outcome; outcome != nil {
		fields[fieldSuccess] = structpb.NewBoolValue(outcome.Success)
		fields[fieldVerification] = structpb.NewStringValue(outcome.Verification.String())

		if outcome.Err != nil {
			fields[fieldError] = structpb.NewStringValue(outcome.Err.Error())
		}

		checks := make([]*structpb.Value, 0, len(outcome.Checks))
		for _, check := range outcome.Checks {
			checks = append(checks, structpb.NewStructValue(&structpb.Struct{
				Fields: map[string]*structpb.Value{
					fieldAlgorithm: structpb.NewStringValue(check.Algorithm),
					fieldExpected:  structpb.NewStringValue(check.Expected),
					fieldComputed:  structpb.NewStringValue(check.Computed),
					fieldMatch:     structpb.NewBoolValue(check.Match),
				},
			}))
		}

		fields[fieldChecks] = structpb.NewListValue(&structpb.ListValue{Values: checks})
	}

	return &structpb.Struct{Fields: fields}
}

// StatusFromProto converts the wire form back into a status message.
// Remote failure causes arrive as plain errors carrying the server's text.
func StatusFromProto(msg *structpb.Struct) modpack.StatusMessage {
	fields := msg.GetFields()

	message := modpack.StatusMessage{
		Kind: modpack.ParseKind(fields[fieldKind].GetStringValue()),
		Path: fields[fieldPath].GetStringValue(),
	}

	if _, ok := fields[fieldVerification]; !ok {
		return message
	}

	outcome := &modpack.DownloadOutcome{
		Path:         message.Path,
		Success:      fields[fieldSuccess].GetBoolValue(),
		Verification: modpack.ParseVerification(fields[fieldVerification].GetStringValue()),
	}

	if text := fields[fieldError].GetStringValue(); text != "" {
		outcome.Err = errors.New(text) //nolint:err113 // Remote errors only keep their text.
	}

	for _, value := range fields[fieldChecks].GetListValue().GetValues() {
		check := value.GetStructValue().GetFields()
		outcome.Checks = append(outcome.Checks, checksum.Check{
			Algorithm: check[fieldAlgorithm].GetStringValue(),
			Expected:  check[fieldExpected].GetStringValue(),
			Computed:  check[fieldComputed].GetStringValue(),
			Match:     check[fieldMatch].GetBoolValue(),
		})
	}

	message.Outcome = outcome

	return message
}

// ErrorToStatus maps domain errors onto gRPC status codes.
func ErrorToStatus(err error) error {
	if err == nil {
		return nil
	}

	var code codes.Code

	switch {
	case errors.Is(err, modpack.ErrDestinationExists):
		code = codes.AlreadyExists
	case errors.Is(err, modpack.ErrPackInUse):
		code = codes.FailedPrecondition
	case errors.Is(err, modpack.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}

	return status.Error(code, err.Error())
}

// ErrorFromStatus maps gRPC status codes back onto domain errors so callers
// can keep using errors.Is.
func ErrorFromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}

	var sentinel error

	switch st.Code() {
	case codes.AlreadyExists:
		sentinel = modpack.ErrDestinationExists
	case codes.FailedPrecondition:
		sentinel = modpack.ErrPackInUse
	case codes.InvalidArgument:
		sentinel = modpack.ErrInvalidRequest
	case codes.Canceled:
		sentinel = context.Canceled
	case codes.DeadlineExceeded:
		sentinel = context.DeadlineExceeded
	default:
		return err
	}

	return fmt.Errorf("%w: %s", sentinel, st.Message())
}

// StatusJSON renders a status message as a single line of JSON in its wire form.
func StatusJSON(message modpack.StatusMessage) ([]byte, error) {
	data, err := protojson.MarshalOptions{Multiline: false}.Marshal(StatusToProto(message))
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}

	return data, nil
}
