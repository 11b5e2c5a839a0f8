package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/abdhe/kelly-poet/pkg/chat"
	"github.com/abdhe/kelly-poet/pkg/completion"
	"github.com/abdhe/kelly-poet/pkg/conversation"
	"github.com/abdhe/kelly-poet/pkg/metrics"
)

// Chat is the session API the handler serves. *chat.Service satisfies it.
type Chat interface {
	Start(ctx context.Context) (string, error)
	Ask(ctx context.Context, sessionID, text string) (string, error)
	History(ctx context.Context, sessionID string) (conversation.History, error)
}

// Handler implements KellyServer.
type Handler struct {
	chat Chat
	log  zerolog.Logger
}

// NewHandler creates a new gRPC handler.
func NewHandler(c Chat, log zerolog.Logger) *Handler {
	return &Handler{chat: c, log: log.With().Str("component", "grpc").Logger()}
}

// NewSession starts an empty session.
func (h *Handler) NewSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := h.chat.Start(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	metrics.SessionsCreated.WithLabelValues("grpc").Inc()
	return structpb.NewStruct(map[string]interface{}{"session_id": id})
}

// Ask answers one prompt within a session.
func (h *Handler) Ask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireString(req, "session_id")
	if err != nil {
		return nil, err
	}
	prompt := req.GetFields()["prompt"].GetStringValue()

	reply, err := h.chat.Ask(ctx, id, prompt)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"session_id": id, "reply": reply})
}

// History returns every recorded turn of a session.
func (h *Handler) History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireString(req, "session_id")
	if err != nil {
		return nil, err
	}

	hist, err := h.chat.History(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}

	turns := make([]interface{}, 0, len(hist))
	for _, t := range hist {
		turns = append(turns, map[string]interface{}{"role": string(t.Role), "content": t.Content})
	}
	return structpb.NewStruct(map[string]interface{}{"session_id": id, "turns": turns})
}

// UnaryLogger logs each call with its status code and latency.
func (h *Handler) UnaryLogger(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	ev := h.log.Info()
	if code != codes.OK {
		ev = h.log.Warn().Err(err)
	}
	ev.Str("method", info.FullMethod).
		Str("code", code.String()).
		Dur("latency", time.Since(start)).
		Msg("rpc")
	return resp, err
}

func requireString(req *structpb.Struct, field string) (string, error) {
	v := strings.TrimSpace(req.GetFields()[field].GetStringValue())
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	return v, nil
}

// toStatus maps session and completion errors onto gRPC status codes.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt), errors.Is(err, completion.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, conversation.ErrSessionNotFound):
		code = codes.NotFound
	case errors.Is(err, completion.ErrMissingCredential):
		code = codes.FailedPrecondition
	case errors.Is(err, completion.ErrRetriesExhausted):
		code = codes.ResourceExhausted
	case errors.Is(err, completion.ErrTransport):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

var _ KellyServer = (*Handler)(nil)
