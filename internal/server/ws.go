package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/session"
)

const writeWait = 5 * time.Second

// Inbound message types.
const (
	msgKey    = "key"
	msgReset  = "reset"
	msgFinish = "finish"
	msgPing   = "ping"
)

// Outbound message types.
const (
	msgState  = "state"
	msgResult = "result"
	msgPong   = "pong"
	msgError  = "error"
)

// ClientMessage is sent by the browser.
type ClientMessage struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
}

// ServerMessage is sent to the browser.
type ServerMessage struct {
	Type   string            `json:"type"`
	State  *session.Snapshot `json:"state,omitempty"`
	Result *model.TestResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// wsClient serializes writes to one connection.
type wsClient struct {
	conn    *websocket.Conn
	log     *zap.Logger
	writeMu sync.Mutex
}

func (c *wsClient) send(msg ServerMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Debug("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (c *wsClient) sendState(snap session.Snapshot) {
	c.send(ServerMessage{Type: msgState, State: &snap})
}

// serveTest hosts one session per connection. Query parameters select the
// config: mode, time, words, lang, punctuation, numbers, freedom, hideExtra,
// difficulty and username.
func (s *Server) serveTest(c *gin.Context) {
	cfg, err := configFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	username := c.Query("username")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if !s.trackConn(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrackConn(conn)
	client := &wsClient{conn: conn, log: s.log}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			// Best-effort close.
			_ = cerr
		}
	}()

	sess, err := session.New(cfg, s.words,
		session.WithTickInterval(s.tick),
		session.WithUsername(username),
		session.WithLogger(s.log),
		session.WithNotifier(client.sendState),
		session.WithFinish(func(r model.TestResult) {
			s.dispatcher.Dispatch(r, username)
			client.send(ServerMessage{Type: msgResult, Result: &r})
		}),
	)
	if err != nil {
		client.send(ServerMessage{Type: msgError, Error: err.Error()})
		return
	}
	defer sess.Close()

	s.log.Debug("session opened", zap.String("username", username), zap.String("mode", cfg.ModeKey()))
	client.sendState(sess.Snapshot())

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case msgKey:
			key, ok := session.ParseKey(msg.Key)
			if !ok {
				client.send(ServerMessage{Type: msgError, Error: "unsupported key"})
				continue
			}
			sess.ProcessInput(key)
			client.sendState(sess.Snapshot())
		case msgReset:
			if err := sess.Reset(); err != nil {
				client.send(ServerMessage{Type: msgError, Error: err.Error()})
			}
		case msgFinish:
			if _, ok := sess.Finish(); !ok {
				client.send(ServerMessage{Type: msgError, Error: "test is not active"})
				continue
			}
			client.sendState(sess.Snapshot())
		case msgPing:
			client.send(ServerMessage{Type: msgPong})
		default:
			client.send(ServerMessage{Type: msgError, Error: "unknown message type"})
		}
	}
}

func configFromQuery(c *gin.Context) (model.TestConfig, error) {
	mode, err := model.ParseMode(c.DefaultQuery("mode", string(model.ModeTime)))
	if err != nil {
		return model.TestConfig{}, err
	}
	difficulty, err := model.ParseDifficulty(c.Query("difficulty"))
	if err != nil {
		return model.TestConfig{}, err
	}
	cfg := model.TestConfig{
		Mode:             mode,
		Language:         c.DefaultQuery("lang", "english"),
		Punctuation:      queryBool(c, "punctuation"),
		Numbers:          queryBool(c, "numbers"),
		FreedomMode:      queryBool(c, "freedom"),
		HideExtraLetters: queryBool(c, "hideExtra"),
		Difficulty:       difficulty,
	}
	cfg.TimeLimit, _ = strconv.Atoi(c.DefaultQuery("time", "30"))
	cfg.WordTarget, _ = strconv.Atoi(c.DefaultQuery("words", "25"))
	if mode == model.ModeTime {
		cfg.WordTarget = 0
	} else {
		cfg.TimeLimit = 0
	}
	return cfg, cfg.Validate()
}

func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}
