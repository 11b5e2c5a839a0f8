package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/abdhe/kelly-poet/pkg/chat"
	"github.com/abdhe/kelly-poet/pkg/completion"
	"github.com/abdhe/kelly-poet/pkg/conversation"
)

// echoCompleter replies with the prompt and the number of prior turns, or fails with err.
type echoCompleter struct {
	err error
}

func (e *echoCompleter) Complete(_ context.Context, _ string, h conversation.History, prompt string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return fmt.Sprintf("verse on %q after %d turns", prompt, len(h)), nil
}

func dial(t *testing.T, c chat.Completer) *grpc.ClientConn {
	t.Helper()

	svc := chat.NewService(conversation.NewMemoryStore(), c)
	srv := NewGRPCServer(NewHandler(svc, zerolog.Nop()))

	lis := bufconn.Listen(1024 * 1024)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestKelly_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewClient(dial(t, &echoCompleter{}))

	id, err := client.NewSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	reply, err := client.Ask(ctx, id, "Is AGI near?")
	require.NoError(t, err)
	assert.Equal(t, `verse on "Is AGI near?" after 0 turns`, reply)

	reply, err = client.Ask(ctx, id, "Why not?")
	require.NoError(t, err)
	assert.Equal(t, `verse on "Why not?" after 2 turns`, reply)

	turns, err := client.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, map[string]string{"role": "user", "content": "Is AGI near?"}, turns[0])
	assert.Equal(t, "assistant", turns[1]["role"])
	assert.Equal(t, "Why not?", turns[2]["content"])
}

func TestKelly_ErrorCodes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"missing credential", &completion.Error{Kind: completion.KindMissingCredential, Provider: "openai"}, codes.FailedPrecondition},
		{"retries exhausted", &completion.Error{Kind: completion.KindRetriesExhausted, Provider: "openai", Attempts: 3, StatusCode: 429}, codes.ResourceExhausted},
		{"transport", &completion.Error{Kind: completion.KindTransport, Provider: "openai", Err: errors.New("dial tcp: refused")}, codes.Unavailable},
		{"protocol", &completion.Error{Kind: completion.KindProtocol, Provider: "openai", StatusCode: 500}, codes.Internal},
		{"malformed", &completion.Error{Kind: completion.KindMalformedResponse, Provider: "gemini"}, codes.Internal},
		{"invalid request", &completion.Error{Kind: completion.KindInvalidRequest}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(dial(t, &echoCompleter{err: tt.err}))
			id, err := client.NewSession(ctx)
			require.NoError(t, err)

			_, err = client.Ask(ctx, id, "hello")
			assert.Equal(t, tt.want, status.Code(err))

			turns, err := client.History(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, turns)
		})
	}
}

func TestKelly_RequestValidation(t *testing.T) {
	ctx := context.Background()
	client := NewClient(dial(t, &echoCompleter{}))

	_, err := client.Ask(ctx, "", "hello")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Ask(ctx, "no-such-session", "hello")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.History(ctx, "no-such-session")
	assert.Equal(t, codes.NotFound, status.Code(err))

	id, err := client.NewSession(ctx)
	require.NoError(t, err)
	_, err = client.Ask(ctx, id, "   ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestKelly_HealthServing(t *testing.T) {
	conn := dial(t, &echoCompleter{})
	hc := healthpb.NewHealthClient(conn)

	for _, svc := range []string{"", ServiceName} {
		resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}
}

func TestToStatus_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, codes.Internal, status.Code(toStatus(errors.New("boom"))))
	assert.Equal(t, codes.NotFound, status.Code(toStatus(fmt.Errorf("chat: history: %w", conversation.ErrSessionNotFound))))
}
