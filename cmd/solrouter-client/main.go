// Command solrouter-client submits one order and streams its status events
// until the order reaches a terminal state.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type submitAck struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	WebSocket string `json:"websocket"`
}

type statusEvent struct {
	OrderID   string          `json:"orderId"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	tokenIn := flag.String("in", "SOL", "input token symbol")
	tokenOut := flag.String("out", "USDC", "output token symbol")
	amount := flag.Float64("amount", 1.0, "input amount")
	timeout := flag.Duration("timeout", 60*time.Second, "give up after this long")
	flag.Parse()

	body, _ := json.Marshal(map[string]any{
		"type":     "market",
		"tokenIn":  *tokenIn,
		"tokenOut": *tokenOut,
		"amountIn": *amount,
	})

	resp, err := http.Post(*addr+"/api/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "submitting order: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var e map[string]string
		json.NewDecoder(resp.Body).Decode(&e)
		fmt.Fprintf(os.Stderr, "order rejected (%d): %s\n", resp.StatusCode, e["error"])
		os.Exit(1)
	}

	var ack submitAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		fmt.Fprintf(os.Stderr, "decoding order: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("order %s accepted (%s)\n", ack.OrderID, ack.Status)

	wsURL := strings.Replace(*addr, "http", "ws", 1) + ack.WebSocket
	ws, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting stream: %v\n", err)
		os.Exit(1)
	}
	if wsResp != nil {
		wsResp.Body.Close()
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(*timeout))
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "stream closed: %v\n", err)
			os.Exit(1)
		}

		var ev statusEvent
		if err := json.Unmarshal(frame, &ev); err != nil {
			fmt.Fprintf(os.Stderr, "bad event: %v\n", err)
			continue
		}

		if len(ev.Data) > 0 {
			fmt.Printf("%s  %-9s %s\n", ev.Timestamp.Format(time.RFC3339), ev.Status, ev.Data)
		} else {
			fmt.Printf("%s  %s\n", ev.Timestamp.Format(time.RFC3339), ev.Status)
		}

		if ev.Status == "CONFIRMED" || ev.Status == "FAILED" {
			if ev.Status == "FAILED" {
				os.Exit(1)
			}
			return
		}
	}
}
