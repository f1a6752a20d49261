package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	userID := flag.String("user", "", "user id to identify as (empty for anonymous)")
	count := flag.Int("count", 3, "number of events to wait for")
	timeout := flag.Duration("timeout", 30*time.Second, "total timeout for the run")
	flag.Parse()

	url := *addr
	if *userID != "" {
		url += "?userId=" + *userID
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for i := 0; i < *count; i++ {
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			log.Fatalf("read: %v", err)
		}
		fmt.Printf("event type=%s data=%s\n", frame.Type, string(frame.Data))
	}
}
