package server

import (
	"context"
	"encoding/json"

	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/lobby"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// MatchServiceName is the fully qualified gRPC service name.
const MatchServiceName = "mushi.v1.MatchService"

// JSONCodecName is the content subtype the match service speaks. Clients
// select it with grpc.CallContentSubtype(JSONCodecName).
const JSONCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type ConnectRequest struct{}

type ConnectResponse struct {
	SessionID string `json:"sessionId"`
}

type CreateGameRequest struct {
	SessionID string   `json:"sessionId"`
	Username  string   `json:"username"`
	Deck      []string `json:"deck,omitempty"`
	SavedDeck string   `json:"savedDeck,omitempty"`
}

type JoinGameRequest struct {
	SessionID string   `json:"sessionId"`
	GameID    string   `json:"gameId"`
	Username  string   `json:"username"`
	Deck      []string `json:"deck,omitempty"`
	SavedDeck string   `json:"savedDeck,omitempty"`
}

type ReadyRequest struct {
	SessionID string `json:"sessionId"`
	GameID    string `json:"gameId"`
}

type ActRequest struct {
	SessionID string              `json:"sessionId"`
	GameID    string              `json:"gameId"`
	Action    lobby.ActionRequest `json:"action"`
}

type GetStateRequest struct {
	SessionID string `json:"sessionId"`
	GameID    string `json:"gameId"`
}

// GameResponse reports the outcome of a match operation. Rule failures come
// back with Success false and an Error; malformed calls fail with a gRPC
// status instead.
type GameResponse struct {
	Success   bool                `json:"success"`
	Error     *lobby.ErrorPayload `json:"error,omitempty"`
	GameID    string              `json:"gameId,omitempty"`
	PlayerID  string              `json:"playerId,omitempty"`
	GameState *game.View          `json:"gameState,omitempty"`
}

type ListMatchesRequest struct{}

type ListMatchesResponse struct {
	Matches []game.MatchInfo `json:"matches"`
}

type DisconnectRequest struct {
	SessionID string `json:"sessionId"`
}

type DisconnectResponse struct{}

type SubscribeRequest struct {
	SessionID string `json:"sessionId"`
}

// MatchServiceServer is the server API for the match service.
type MatchServiceServer interface {
	Connect(context.Context, *ConnectRequest) (*ConnectResponse, error)
	CreateGame(context.Context, *CreateGameRequest) (*GameResponse, error)
	JoinGame(context.Context, *JoinGameRequest) (*GameResponse, error)
	Ready(context.Context, *ReadyRequest) (*GameResponse, error)
	Act(context.Context, *ActRequest) (*GameResponse, error)
	GetState(context.Context, *GetStateRequest) (*GameResponse, error)
	ListMatches(context.Context, *ListMatchesRequest) (*ListMatchesResponse, error)
	Disconnect(context.Context, *DisconnectRequest) (*DisconnectResponse, error)
	Subscribe(*SubscribeRequest, grpc.ServerStreamingServer[lobby.Message]) error
}

func unaryMethod[Req, Resp any](name string, call func(MatchServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MatchServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + MatchServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(MatchServiceServer), ctx, req.(*Req))
			})
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MatchServiceServer).Subscribe(in, &grpc.GenericServerStream[SubscribeRequest, lobby.Message]{ServerStream: stream})
}

// MatchServiceDesc describes the match service for grpc.Server.RegisterService.
var MatchServiceDesc = grpc.ServiceDesc{
	ServiceName: MatchServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Connect", MatchServiceServer.Connect),
		unaryMethod("CreateGame", MatchServiceServer.CreateGame),
		unaryMethod("JoinGame", MatchServiceServer.JoinGame),
		unaryMethod("Ready", MatchServiceServer.Ready),
		unaryMethod("Act", MatchServiceServer.Act),
		unaryMethod("GetState", MatchServiceServer.GetState),
		unaryMethod("ListMatches", MatchServiceServer.ListMatches),
		unaryMethod("Disconnect", MatchServiceServer.Disconnect),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "mushi/v1/match.json",
}

// RegisterMatchServiceServer registers srv on s.
func RegisterMatchServiceServer(s grpc.ServiceRegistrar, srv MatchServiceServer) {
	s.RegisterService(&MatchServiceDesc, srv)
}

// MatchClient calls the match service using the JSON codec.
type MatchClient struct {
	cc grpc.ClientConnInterface
}

func NewMatchClient(cc grpc.ClientConnInterface) *MatchClient {
	return &MatchClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *MatchClient, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+MatchServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatchClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectResponse, error) {
	return invoke[ConnectResponse](ctx, c, "Connect", in, opts)
}

func (c *MatchClient) CreateGame(ctx context.Context, in *CreateGameRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c, "CreateGame", in, opts)
}

func (c *MatchClient) JoinGame(ctx context.Context, in *JoinGameRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c, "JoinGame", in, opts)
}

func (c *MatchClient) Ready(ctx context.Context, in *ReadyRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c, "Ready", in, opts)
}

func (c *MatchClient) Act(ctx context.Context, in *ActRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c, "Act", in, opts)
}

func (c *MatchClient) GetState(ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	return invoke[GameResponse](ctx, c, "GetState", in, opts)
}

func (c *MatchClient) ListMatches(ctx context.Context, in *ListMatchesRequest, opts ...grpc.CallOption) (*ListMatchesResponse, error) {
	return invoke[ListMatchesResponse](ctx, c, "ListMatches", in, opts)
}

func (c *MatchClient) Disconnect(ctx context.Context, in *DisconnectRequest, opts ...grpc.CallOption) (*DisconnectResponse, error) {
	return invoke[DisconnectResponse](ctx, c, "Disconnect", in, opts)
}

// Subscribe opens the event stream for a session. Cancel ctx to leave.
func (c *MatchClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[lobby.Message], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &MatchServiceDesc.Streams[0], "/"+MatchServiceName+"/Subscribe", opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SubscribeRequest, lobby.Message]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
