// Bot drives full matches against a running server: each pair registers two
// accounts, lobbies up through a private code, starts the game and plays to
// the winning score while streaming pose samples. Useful for load testing
// and protocol smoke checks.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Rajthegreat123/strikas/pkg/protocol"
)

type Stats struct {
	connected int64
	started   int64
	finished  int64
	errors    int64
}

type account struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

type Bot struct {
	httpAddr string
	wsAddr   string
	stats    *Stats
	acct     account
	conn     *websocket.Conn
	sendMu   sync.Mutex
	rng      *rand.Rand

	mu     sync.Mutex
	gameID string
	done   chan struct{}
}

func main() {
	httpAddr := flag.String("http", "http://127.0.0.1:4000", "server base URL")
	wsAddr := flag.String("ws", "ws://127.0.0.1:4000/ws", "websocket address")
	pairs := flag.Int("pairs", 10, "number of bot pairs")
	hz := flag.Int("hz", 20, "sample rate per bot")
	flag.Parse()

	stats := &Stats{}
	for i := 0; i < *pairs; i++ {
		go runPair(i, *httpAddr, *wsAddr, *hz, stats)
		time.Sleep(20 * time.Millisecond)
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		fmt.Printf("connected=%d started=%d finished=%d errors=%d\n",
			atomic.LoadInt64(&stats.connected),
			atomic.LoadInt64(&stats.started),
			atomic.LoadInt64(&stats.finished),
			atomic.LoadInt64(&stats.errors),
		)
	}
}

func runPair(id int, httpAddr, wsAddr string, hz int, stats *Stats) {
	host := NewBot(httpAddr, wsAddr, stats)
	guest := NewBot(httpAddr, wsAddr, stats)

	if err := host.Register(fmt.Sprintf("host-%d-%s", id, uuid.NewString()[:8])); err != nil {
		atomic.AddInt64(&stats.errors, 1)
		return
	}
	if err := guest.Register(fmt.Sprintf("guest-%d-%s", id, uuid.NewString()[:8])); err != nil {
		atomic.AddInt64(&stats.errors, 1)
		return
	}

	lobby, err := host.CreatePrivateLobby()
	if err != nil {
		atomic.AddInt64(&stats.errors, 1)
		return
	}
	if _, err := guest.JoinByCode(lobby.Code); err != nil {
		atomic.AddInt64(&stats.errors, 1)
		return
	}

	for _, b := range []*Bot{host, guest} {
		if err := b.Connect(); err != nil {
			atomic.AddInt64(&stats.errors, 1)
			return
		}
		go b.ReadLoop()
		b.Emit(protocol.EvtJoinLobby, protocol.JoinLobby{LobbyID: lobby.ID})
	}

	host.Emit(protocol.EvtStartGame, protocol.StartGame{LobbyID: lobby.ID})
	atomic.AddInt64(&stats.started, 1)

	go host.Play(hz, true)
	guest.Play(hz, false)
}

func NewBot(httpAddr, wsAddr string, stats *Stats) *Bot {
	return &Bot{
		httpAddr: httpAddr,
		wsAddr:   wsAddr,
		stats:    stats,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		done:     make(chan struct{}),
	}
}

func (b *Bot) Register(name string) error {
	body, _ := json.Marshal(map[string]string{
		"username": name,
		"email":    name + "@bots.local",
		"password": "botpass-" + name,
	})
	resp, err := http.Post(b.httpAddr+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(&b.acct)
}

type lobbyDoc struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

func (b *Bot) CreatePrivateLobby() (*lobbyDoc, error) {
	return b.gamePost("/api/game/lobby", map[string]any{"isPrivate": true})
}

func (b *Bot) JoinByCode(code string) (*lobbyDoc, error) {
	return b.gamePost("/api/game/lobby/join-by-code", map[string]any{"code": code})
}

func (b *Bot) gamePost(path string, payload map[string]any) (*lobbyDoc, error) {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, b.httpAddr+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.acct.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	var l lobbyDoc
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (b *Bot) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(b.wsAddr+"?token="+b.acct.Token, nil)
	if err != nil {
		return err
	}
	b.conn = conn
	atomic.AddInt64(&b.stats.connected, 1)
	return nil
}

func (b *Bot) Emit(evt protocol.EventType, data any) {
	frame, err := protocol.Encode(evt, data)
	if err != nil {
		return
	}
	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	_ = b.conn.WriteMessage(websocket.TextMessage, frame)
}

func (b *Bot) ReadLoop() {
	for {
		_, frame, err := b.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(frame)
		if err != nil {
			continue
		}
		switch env.Type {
		case protocol.EvtGameStarted:
			var started struct {
				GameID string `json:"gameId"`
			}
			if err := env.Bind(&started); err == nil {
				b.mu.Lock()
				b.gameID = started.GameID
				b.mu.Unlock()
				b.Emit(protocol.EvtJoinGame, protocol.JoinGame{GameID: started.GameID})
			}
		case protocol.EvtGameOver, protocol.EvtGameEnded:
			atomic.AddInt64(&b.stats.finished, 1)
			select {
			case <-b.done:
			default:
				close(b.done)
			}
			return
		}
	}
}

// Play streams pose samples until the match finishes. The host additionally
// owns the ball and reports a goal every few seconds so matches converge.
func (b *Bot) Play(hz int, isHost bool) {
	defer b.conn.Close()

	sample := time.NewTicker(time.Second / time.Duration(hz))
	defer sample.Stop()
	goal := time.NewTicker(3 * time.Second)
	defer goal.Stop()

	deadline := time.After(2 * time.Minute)
	for {
		select {
		case <-b.done:
			return
		case <-deadline:
			return
		case <-sample.C:
			gameID := b.game()
			if gameID == "" {
				continue
			}
			pos := protocol.Vec2{X: b.rng.Float64() * 800, Y: b.rng.Float64() * 600}
			vel := protocol.Vec2{X: b.rng.Float64()*10 - 5, Y: b.rng.Float64()*10 - 5}
			b.Emit(protocol.EvtPlayerUpdate, protocol.PlayerUpdate{GameID: gameID, Position: pos, Velocity: vel})
			if isHost {
				b.Emit(protocol.EvtBallUpdate, protocol.BallUpdate{GameID: gameID, Position: pos, Velocity: vel})
			}
		case <-goal.C:
			if !isHost {
				continue
			}
			gameID := b.game()
			if gameID == "" {
				continue
			}
			scorer := "host"
			if b.rng.Intn(3) == 0 {
				scorer = "guest"
			}
			b.Emit(protocol.EvtGoalScored, protocol.GoalScored{GameID: gameID, Scorer: scorer})
		}
	}
}

func (b *Bot) game() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gameID
}
