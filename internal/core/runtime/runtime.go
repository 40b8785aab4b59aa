// Package runtime is the explicit context a set of games runs in. It replaces
// process-wide globals: the type and component registries, the deferred
// initialization queue, the clock and the event bus all live on a Runtime,
// so independent games can share a process without cross-talk.
package runtime

import (
	"github.com/zeusync/playscope/internal/core/component"
	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/events/bus"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/types"
)

type Runtime struct {
	config     Config
	logger     log.Log
	doc        *dom.Document
	types      *types.Registry
	components *component.Registry
	events     bus.EventBus
	queue      *InitQueue
	scheduler  *Scheduler
}

// New builds a runtime around doc. Zero config fields take their defaults.
func New(doc *dom.Document, cfg Config, logger log.Log) *Runtime {
	if logger == nil {
		logger = log.NewNop()
	}
	cfg = cfg.Merge(DefaultConfig())
	treg := types.NewRegistry(logger)
	return &Runtime{
		config:     cfg,
		logger:     logger,
		doc:        doc,
		types:      treg,
		components: component.NewRegistry(treg, logger),
		events:     bus.New(),
		queue:      NewInitQueue(logger),
		scheduler:  NewScheduler(),
	}
}

func (r *Runtime) Config() Config                  { return r.config }
func (r *Runtime) Logger() log.Log                 { return r.logger }
func (r *Runtime) Document() *dom.Document         { return r.doc }
func (r *Runtime) Types() *types.Registry          { return r.types }
func (r *Runtime) Components() *component.Registry { return r.components }
func (r *Runtime) Events() bus.EventBus            { return r.events }
func (r *Runtime) Queue() *InitQueue               { return r.queue }
func (r *Runtime) Scheduler() *Scheduler           { return r.scheduler }

// Prefix is the attribute prefix marking captured properties.
func (r *Runtime) Prefix() string { return r.config.PropertyPrefix }

// Close stops every timer and frame callback. The runtime must not be used
// afterwards.
func (r *Runtime) Close() {
	r.scheduler.Reset()
	r.logger.Debug("runtime closed")
}
