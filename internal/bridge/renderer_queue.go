package bridge

import (
	"sync"

	"ebook-reader/internal/domain"
)

// RendererCommand is one instruction for the rendering engine, delivered to
// the webview when it polls the command endpoint.
type RendererCommand struct {
	Op       string               `json:"op"`
	Kind     string               `json:"kind,omitempty"`
	Location domain.PositionToken `json:"location"`
	Data     *domain.Highlight    `json:"data,omitempty"`
}

const (
	opGoTo             = "goto"
	opAddAnnotation    = "add_annotation"
	opUpdateAnnotation = "update_annotation"
	opRemoveAnnotation = "remove_annotation"
)

// RendererQueue implements domain.Renderer by queueing commands for the
// rendering engine to pick up. Commands preserve submission order; Drain
// hands them over exactly once.
type RendererQueue struct {
	mu       sync.Mutex
	commands []RendererCommand
}

func NewRendererQueue() *RendererQueue {
	return &RendererQueue{}
}

func (q *RendererQueue) GoToLocation(location domain.PositionToken) {
	q.push(RendererCommand{Op: opGoTo, Location: location})
}

func (q *RendererQueue) AddAnnotation(kind string, location domain.PositionToken, data *domain.Highlight) {
	q.push(RendererCommand{Op: opAddAnnotation, Kind: kind, Location: location, Data: data})
}

func (q *RendererQueue) UpdateAnnotation(location domain.PositionToken, data *domain.Highlight) {
	q.push(RendererCommand{Op: opUpdateAnnotation, Location: location, Data: data})
}

func (q *RendererQueue) RemoveAnnotationByLocation(location domain.PositionToken) {
	q.push(RendererCommand{Op: opRemoveAnnotation, Location: location})
}

func (q *RendererQueue) push(cmd RendererCommand) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = append(q.commands, cmd)
}

// Drain returns all pending commands in order and empties the queue.
func (q *RendererQueue) Drain() []RendererCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.commands
	q.commands = nil
	if out == nil {
		out = []RendererCommand{}
	}
	return out
}
