package server

import (
	"context"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a remote compiler service.
type Client struct {
	compile *connect.Client[wrapperspb.StringValue, wrapperspb.BytesValue]
	run     *connect.Client[wrapperspb.StringValue, wrapperspb.Int32Value]
}

// NewClient creates a client for the service at baseURL, e.g.
// "http://localhost:8765". Options such as connect.WithGRPC() select the
// wire protocol.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{
		compile: connect.NewClient[wrapperspb.StringValue, wrapperspb.BytesValue](httpClient, baseURL+CompileProcedure, opts...),
		run:     connect.NewClient[wrapperspb.StringValue, wrapperspb.Int32Value](httpClient, baseURL+RunProcedure, opts...),
	}
}

// Compile returns the module compiled from source.
func (c *Client) Compile(ctx context.Context, source string) ([]byte, error) {
	resp, err := c.compile.CallUnary(ctx, connect.NewRequest(wrapperspb.String(source)))
	if err != nil {
		return nil, err
	}
	return resp.Msg.GetValue(), nil
}

// Run returns the value source evaluates to on the server.
func (c *Client) Run(ctx context.Context, source string) (int32, error) {
	resp, err := c.run.CallUnary(ctx, connect.NewRequest(wrapperspb.String(source)))
	if err != nil {
		return 0, err
	}
	return resp.Msg.GetValue(), nil
}
