package server

import (
	"github.com/gin-gonic/gin"
	"github.com/zulandar/netlog/internal/stream"
)

// handleEvents streams a session's record changes as Server-Sent Events
// until the client disconnects.
func handleEvents(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := s.manager.GetSession(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}

		ch := stream.New(s.hub, id, stream.NewSSESink(c.Writer), stream.Opts{
			KeepAlive: s.keepAlive,
			Logger:    s.log,
		})
		if err := ch.Run(c.Request.Context()); err != nil {
			s.log.WithField("session-id", id).WithError(err).Debug("sse stream ended")
		}
	}
}

// handleWebSocket streams a session's record changes over a WebSocket.
func handleWebSocket(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := s.manager.GetSession(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}

		conn, err := stream.Upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// The upgrader has already written the HTTP error.
			s.log.WithField("session-id", id).WithError(err).Debug("websocket upgrade failed")
			return
		}
		sink := stream.NewWebSocketSink(conn)
		defer sink.Close()

		ctx, cancel := sink.Watch(c.Request.Context())
		defer cancel()

		ch := stream.New(s.hub, id, sink, stream.Opts{
			KeepAlive: s.keepAlive,
			Logger:    s.log,
		})
		if err := ch.Run(ctx); err != nil {
			s.log.WithField("session-id", id).WithError(err).Debug("websocket stream ended")
		}
	}
}
