package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"overgrowth.dev/internal/observerproto"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/observer/ws", "observer ws url")
		speed       = flag.Float64("speed", 5, "walk speed in world units per second along +x")
		startX      = flag.Float64("x", 0, "start x")
		startY      = flag.Float64("y", 0, "start y")
		compression = flag.String("compression", observerproto.CompressionZstd, "frame compression: none|zstd")
		interval    = flag.Duration("move_every", 100*time.Millisecond, "MOVE send interval")
		duration    = flag.Duration("duration", 0, "stop after this long (0 = until interrupted)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[walker] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Pos:             [2]float64{*startX, *startY},
		Compression:     *compression,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	frames := make(chan observerproto.FrameMsg, 64)
	go readFrames(conn, logger, frames)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	w := newWalker(*startX, *startY, *speed)
	tracker := newTracker()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-stop:
			logger.Printf("stopping: %s", tracker.summary())
			return
		case <-deadline:
			logger.Printf("done: %s", tracker.summary())
			return
		case f, ok := <-frames:
			if !ok {
				logger.Printf("connection closed: %s", tracker.summary())
				return
			}
			if err := tracker.apply(f); err != nil {
				logger.Printf("tick %d: %v", f.Tick, err)
			}
			if len(f.Loaded) > 0 || len(f.Unloaded) > 0 {
				logger.Printf("tick=%d center=%v loaded=%d unloaded=%d %s", f.Tick, f.Center, len(f.Loaded), len(f.Unloaded), tracker.summary())
			}
		case now := <-ticker.C:
			pos := w.advance(now.Sub(last))
			last = now
			mv := observerproto.MoveMsg{Type: observerproto.TypeMove, Pos: pos}
			if err := conn.WriteJSON(mv); err != nil {
				logger.Printf("send MOVE: %v", err)
				return
			}
		}
	}
}

func readFrames(conn *websocket.Conn, logger *log.Logger, out chan<- observerproto.FrameMsg) {
	defer close(out)
	for {
		mt, b, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := observerproto.DecodeFrame(b, mt == websocket.BinaryMessage)
		if err != nil {
			logger.Printf("decode frame: %v", err)
			continue
		}
		out <- f
	}
}
