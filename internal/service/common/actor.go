//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"google.golang.org/grpc/metadata"
)

// Metadata keys carrying the requesting actor.
const (
	actorHostnameKey = "x-modpack-actor-hostname"
	actorUsernameKey = "x-modpack-actor-username"
)

// Actor identifies who requested a remote install.
type Actor struct {
	// Hostname is the machine name of the requester.
	Hostname string
	// Username is the system user of the requester.
	Username string
}

// String renders the actor as user@host.
func (a Actor) String() string {
	return a.Username + "@" + a.Hostname
}

// DetectActor gathers host and user information for the server's audit log.
func DetectActor() (Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Actor{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Actor{}, fmt.Errorf("current user: %w", err)
	}

	return Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// WithOutgoingActor attaches the actor to outgoing gRPC metadata.
func WithOutgoingActor(ctx context.Context, actor Actor) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		actorHostnameKey, actor.Hostname,
		actorUsernameKey, actor.Username)
}

// ActorFromIncoming extracts the actor sent by WithOutgoingActor.
func ActorFromIncoming(ctx context.Context) (Actor, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Actor{}, false
	}

	hostnames := md.Get(actorHostnameKey)
	usernames := md.Get(actorUsernameKey)

	if len(hostnames) == 0 || len(usernames) == 0 {
		return Actor{}, false
	}

	return Actor{
		Hostname: hostnames[0],
		Username: usernames[0],
	}, true
}
