package mtpipeline

import (
	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/gwmodel"
)

// Interceptor is the pluggable message-transform seam (spec §9
// "Interceptors"). A static ordered list of these runs after route
// selection, before connector-parameter overlay; each one gets a chance
// to inspect or rewrite the event.
type Interceptor interface {
	// Match reports whether Run should apply to event.
	Match(event *gwmodel.MTEvent) bool
	// Run transforms event, returning the (possibly modified) event.
	Run(event *gwmodel.MTEvent) (*gwmodel.MTEvent, error)
}

// runInterceptors applies every matching interceptor in order. A failing
// interceptor is logged and skipped; the event continues through the
// pipeline unmodified by that interceptor rather than failing the whole
// send.
func runInterceptors(event *gwmodel.MTEvent, interceptors []Interceptor, logger *gwlog.Logger) *gwmodel.MTEvent {
	for _, ic := range interceptors {
		if !ic.Match(event) {
			continue
		}
		next, err := ic.Run(event)
		if err != nil {
			if logger != nil {
				logger.ErrorF("interceptor failed, event unmodified: %+v", err)
			}
			continue
		}
		event = next
	}
	return event
}
