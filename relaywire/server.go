package relaywire

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chainrelay/chainrelay/metrics"
	"github.com/chainrelay/chainrelay/sa"
	"github.com/chainrelay/chainrelay/verifier"
)

// DefaultMaxMessageBytes bounds a single inbound frame; it is generous
// enough for a credential grant event with a sizable schema cache
// reference while still bounding worst-case memory per connection.
const DefaultMaxMessageBytes = 256 * 1024

// Server upgrades incoming HTTP connections to websockets and runs the
// relay wire protocol over each one.
type Server struct {
	upgrader websocket.Upgrader
	handler  *handler
	log      zerolog.Logger
	scope    metrics.Scope
}

// NewServer constructs a Server. maxMessageBytes <= 0 uses
// DefaultMaxMessageBytes.
func NewServer(dispatcher *verifier.Dispatcher, store *sa.Store, log zerolog.Logger, scope metrics.Scope, maxMessageBytes int64) *Server {
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxMessageBytes
	}
	wireScope := scope.NewScope("relay")
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Relay clients are arbitrary public-key holders, not
			// same-origin browser apps; origin checking is not a
			// meaningful trust boundary here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		handler: &handler{
			dispatcher:      dispatcher,
			store:           store,
			registry:        newRegistry(),
			log:             log.With().Str("component", "relaywire").Logger(),
			scope:           wireScope,
			maxMessageBytes: maxMessageBytes,
		},
		log:   log.With().Str("component", "relaywire").Logger(),
		scope: wireScope,
	}
}

// ServeHTTP upgrades the connection and runs its read/write pumps until the
// client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConn(ws, s.handler.log, s.scope)
	s.handler.registry.add(c)
	s.scope.GaugeDelta("connections", 1)
	defer s.scope.GaugeDelta("connections", -1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	c.readPump(r.Context(), s.handler)

	s.handler.registry.remove(c)
	c.shutdown()
	<-done
	_ = ws.Close()
}
