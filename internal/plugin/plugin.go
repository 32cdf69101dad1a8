// Package plugin runs model providers as separate processes over go-plugin's
// net/rpc transport.
package plugin

import (
	"context"
	"fmt"
	"net/rpc"
	"os/exec"

	"github.com/felixgeelhaar/laigent/internal/provider"
	"github.com/hashicorp/go-hclog"
	hcplugin "github.com/hashicorp/go-plugin"
)

// HandshakeConfig is used to handshake between host and plugin.
var HandshakeConfig = hcplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "LAIGENT_PLUGIN_MAGIC_COOKIE",
	MagicCookieValue: "laigent-provider",
}

// ProviderName is the key plugins are dispensed under.
const ProviderName = "provider"

// PluginMap returns the plugins a host can dispense, or a plugin serves when impl is set.
func PluginMap(impl provider.Provider) map[string]hcplugin.Plugin {
	return map[string]hcplugin.Plugin{
		ProviderName: &ProviderPlugin{Impl: impl},
	}
}

// ProviderPlugin implements hcplugin.Plugin for provider.Provider.
type ProviderPlugin struct {
	Impl provider.Provider
}

func (p *ProviderPlugin) Server(*hcplugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *ProviderPlugin) Client(b *hcplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// RPCClient is a provider.Provider that talks to a plugin process.
// net/rpc carries no context, so cancellation is only checked before each call.
type RPCClient struct {
	client *rpc.Client
}

func (c *RPCClient) Name() string {
	var name string
	if err := c.client.Call("Plugin.Name", new(interface{}), &name); err != nil {
		return "plugin"
	}
	return "plugin-" + name
}

func (c *RPCClient) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var resp provider.Completion
	if err := c.client.Call("Plugin.Complete", req, &resp); err != nil {
		return nil, fmt.Errorf("plugin completion failed: %w", err)
	}
	return &resp, nil
}

func (c *RPCClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var vec []float32
	if err := c.client.Call("Plugin.Embed", text, &vec); err != nil {
		return nil, fmt.Errorf("plugin embedding failed: %w", err)
	}
	return vec, nil
}

func (c *RPCClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var vecs [][]float32
	if err := c.client.Call("Plugin.EmbedBatch", texts, &vecs); err != nil {
		return nil, fmt.Errorf("plugin embedding failed: %w", err)
	}
	return vecs, nil
}

// RPCServer is the plugin side, calling the local implementation.
type RPCServer struct {
	Impl provider.Provider
}

func (s *RPCServer) Name(args interface{}, resp *string) error {
	*resp = s.Impl.Name()
	return nil
}

func (s *RPCServer) Complete(req provider.CompletionRequest, resp *provider.Completion) error {
	c, err := s.Impl.Complete(context.Background(), req)
	if err != nil {
		return err
	}
	*resp = *c
	return nil
}

func (s *RPCServer) Embed(text string, resp *[]float32) error {
	vec, err := s.Impl.Embed(context.Background(), text)
	if err != nil {
		return err
	}
	*resp = vec
	return nil
}

func (s *RPCServer) EmbedBatch(texts []string, resp *[][]float32) error {
	vecs, err := s.Impl.EmbedBatch(context.Background(), texts)
	if err != nil {
		return err
	}
	*resp = vecs
	return nil
}

// Serve runs impl as a plugin. It is called from a plugin binary's main.
func Serve(impl provider.Provider) {
	hcplugin.Serve(&hcplugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap(impl),
	})
}

// Remote is a provider backed by a running plugin process.
type Remote struct {
	*RPCClient
	client *hcplugin.Client
}

// Launch starts the plugin binary at path and dispenses its provider.
func Launch(path string, args ...string) (*Remote, error) {
	client := hcplugin.NewClient(&hcplugin.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap(nil),
		Cmd:              exec.Command(path, args...), // #nosec G204 path comes from local configuration
		AllowedProtocols: []hcplugin.Protocol{hcplugin.ProtocolNetRPC},
		Logger:           hclog.NewNullLogger(),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to start plugin %s: %w", path, err)
	}
	raw, err := rpcClient.Dispense(ProviderName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense provider from %s: %w", path, err)
	}
	c, ok := raw.(*RPCClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s returned %T, not a provider", path, raw)
	}
	return &Remote{RPCClient: c, client: client}, nil
}

// Close stops the plugin process.
func (r *Remote) Close() error {
	r.client.Kill()
	return nil
}
