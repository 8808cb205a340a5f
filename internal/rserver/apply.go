package rserver

import (
	"fmt"

	"github.com/adred-codev/miniredis/internal/command"
	"github.com/adred-codev/miniredis/internal/resp"
	"github.com/adred-codev/miniredis/internal/store"
)

// unknownCommandErr builds the wire-level error frame for a command
// name the server doesn't recognize (§6).
func unknownCommandErr(name string) resp.Frame {
	return resp.Err(fmt.Sprintf("ERR unknown command %s", name))
}

// applyNonSubscribe executes every command kind except SUBSCRIBE,
// which the caller dispatches to the subscribe session instead
// (§4.C/§4.E). It returns the response frame to write back.
func applyNonSubscribe(st *store.Store, m *metrics, cmd command.Command) resp.Frame {
	switch cmd.Kind {
	case command.KindGet:
		m.commandsTotal.WithLabelValues("get").Inc()
		v, ok := st.Get(cmd.Key)
		if !ok {
			return resp.NullFrame()
		}
		return resp.BulkBytes(v)

	case command.KindSet:
		m.commandsTotal.WithLabelValues("set").Inc()
		st.Set(cmd.Key, cmd.Value, cmd.Expire)
		return resp.Simple("OK")

	case command.KindPublish:
		m.commandsTotal.WithLabelValues("publish").Inc()
		m.publishes.Inc()
		n := st.Publish(cmd.Channel, cmd.Message)
		return resp.Int64(uint64(n))

	case command.KindPing:
		m.commandsTotal.WithLabelValues("ping").Inc()
		if cmd.HasMsg {
			return resp.BulkBytes(cmd.Msg)
		}
		return resp.Simple("PONG")

	case command.KindUnsubscribe:
		// bare UNSUBSCRIBE outside a subscribe session is a logical
		// error, not a no-op success.
		m.commandsTotal.WithLabelValues("unsubscribe").Inc()
		return resp.Err("Unsubscribe unsupported in this context")

	default:
		m.unknownCommands.Inc()
		return unknownCommandErr(cmd.Name)
	}
}
