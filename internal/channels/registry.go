package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/microclaw/microclaw/internal/metrics"
	"github.com/microclaw/microclaw/internal/models"
)

// Registry maps chat_type to its owning route and adapter capabilities,
// keyed by arbitrary chat_type strings plus conversation-kind/cross-chat
// policy.
type Registry struct {
	mu        sync.RWMutex
	routes    map[models.ChatType]Route
	adapters  map[string]Adapter
	outbound  map[string]OutboundAdapter
	inbound   map[string]InboundAdapter
	lifecycle map[string]LifecycleAdapter
	collector *metrics.Collector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		routes:    make(map[models.ChatType]Route),
		adapters:  make(map[string]Adapter),
		outbound:  make(map[string]OutboundAdapter),
		inbound:   make(map[string]InboundAdapter),
		lifecycle: make(map[string]LifecycleAdapter),
	}
}

// Register claims a route for every chat type the adapter declares and
// records its capability interfaces.
func (r *Registry) Register(adapter Adapter, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[adapter.Name()] = adapter
	for _, ct := range adapter.ChatTypes() {
		r.routes[ct] = route
	}
	if out, ok := adapter.(OutboundAdapter); ok {
		r.outbound[adapter.Name()] = out
	}
	if in, ok := adapter.(InboundAdapter); ok {
		r.inbound[adapter.Name()] = in
	}
	if lc, ok := adapter.(LifecycleAdapter); ok {
		r.lifecycle[adapter.Name()] = lc
	}
}

// ResolveRouting returns the channel name and conversation kind claimed for
// chatType.
func (r *Registry) ResolveRouting(chatType models.ChatType) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[chatType]
	if !ok {
		return Route{}, fmt.Errorf("channels: no route registered for chat_type %q", chatType)
	}
	return route, nil
}

// RouteForChannel returns the route registered for channelName, the
// channel's own cross-chat policy rather than any particular chat_type's.
// Used to authorize a caller's own channel against a cross-chat operation,
// as opposed to ResolveRouting which looks up the destination's route.
func (r *Registry) RouteForChannel(channelName string) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, route := range r.routes {
		if route.ChannelName == channelName {
			return route, nil
		}
	}
	return Route{}, fmt.Errorf("channels: no route registered for channel %q", channelName)
}

// Outbound returns the adapter able to send to channelName.
func (r *Registry) Outbound(channelName string) (OutboundAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.outbound[channelName]
	return a, ok
}

// SetCollector attaches a Prometheus collector recording message flow
// through SendOutbound and AggregateMessages.
func (r *Registry) SetCollector(c *metrics.Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collector = c
}

// SendOutbound looks up channelName's outbound adapter and delivers msg,
// recording the send regardless of outcome.
func (r *Registry) SendOutbound(ctx context.Context, channelName, externalID string, msg models.Message) error {
	r.mu.RLock()
	out, ok := r.outbound[channelName]
	collector := r.collector
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("channels: no outbound adapter registered for channel %q", channelName)
	}

	err := out.Send(ctx, externalID, msg)
	if collector != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		collector.MessagesTotal.WithLabelValues(channelName, "outbound_"+status).Inc()
	}
	return err
}

// StartAll starts every lifecycle-capable adapter.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.lifecycle {
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("channels: start %s: %w", a.Name(), err)
		}
	}
	return nil
}

// StopAll stops every lifecycle-capable adapter.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.lifecycle {
		_ = a.Stop(ctx)
	}
}

// AggregateMessages fans in every inbound adapter's message channel into a
// single channel, closed once every source adapter's channel is closed (or
// ctx is cancelled).
func (r *Registry) AggregateMessages(ctx context.Context) <-chan InboundMessage {
	r.mu.RLock()
	sources := make([]InboundAdapter, 0, len(r.inbound))
	for _, a := range r.inbound {
		sources = append(sources, a)
	}
	r.mu.RUnlock()

	r.mu.RLock()
	collector := r.collector
	r.mu.RUnlock()

	out := make(chan InboundMessage)
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src InboundAdapter) {
			defer wg.Done()
			for {
				select {
				case msg, ok := <-src.Messages():
					if !ok {
						return
					}
					if collector != nil {
						collector.MessagesTotal.WithLabelValues(src.Name(), "inbound").Inc()
					}
					select {
					case out <- msg:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
