// Package services hosts the external collaborators that wake modules up:
// interval timers and the device-property router. Each runs as its own
// suture-supervised goroutine and talks to the dispatch loop only through
// its bounded request channel; a full channel drops the message rather
// than blocking the service.
package services

import (
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

// NewSupervisor builds the supervisor the services run under, with suture
// lifecycle events routed into the runtime's logger.
func NewSupervisor(log *zap.Logger) *suture.Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return suture.New("widget-services", suture.Spec{
		EventHook: newEventHook(log),
	})
}

func newEventHook(log *zap.Logger) suture.EventHook {
	return func(e suture.Event) {
		switch ev := e.(type) {
		case suture.EventBackoff:
			log.Debug("supervisor backing off", zap.String("supervisor", ev.SupervisorName))

		case suture.EventResume:
			log.Info("supervisor resumed", zap.String("supervisor", ev.SupervisorName))

		case suture.EventServiceTerminate:
			log.Warn("service terminated",
				zap.String("service", ev.ServiceName),
				zap.Any("error", ev.Err),
				zap.Bool("restarting", ev.Restarting))

		case suture.EventServicePanic:
			log.Error("service panicked",
				zap.String("service", ev.ServiceName),
				zap.String("panic", ev.PanicMsg),
				zap.Bool("restarting", ev.Restarting))

		case suture.EventStopTimeout:
			log.Error("service failed to stop",
				zap.String("service", ev.ServiceName))
		}
	}
}
