// Package bridge relays NFC scans between the hardware bridge process and
// kiosk browsers over websockets. The bridge pushes signed tag payloads in;
// the hub verifies them and fans the student id out to every connected
// kiosk, and forwards tag-write requests back to the bridge.
package bridge

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"teamkiosk/internal/nfctag"
)

// MessageType values exchanged on the socket.
const (
	TypeScan      = "scan"       // bridge -> hub: raw tag payload
	TypeStudent   = "student"    // hub -> kiosks: verified student id
	TypeWriteTag  = "write_tag"  // kiosk -> hub -> bridge: program a tag
	TypeTagError  = "tag_error"  // hub -> sender: rejected payload
	TypeBridgeJob = "bridge_job" // hub -> bridge: pending write payload
)

// Message is the wire format for every frame.
type Message struct {
	Type      string `json:"type"`
	Payload   string `json:"payload,omitempty"`
	StudentID string `json:"student_id,omitempty"`
}

// ScanFunc is invoked with a verified student id; the caller records the
// kiosk toggle there.
type ScanFunc func(ctx context.Context, studentID string) error

// Hub tracks connected sockets and routes frames between them.
type Hub struct {
	signer *nfctag.Signer
	onScan ScanFunc

	mu      sync.Mutex
	kiosks  map[*websocket.Conn]bool
	bridges map[*websocket.Conn]bool
}

// NewHub creates a hub that verifies scans with signer and reports them via
// onScan.
func NewHub(signer *nfctag.Signer, onScan ScanFunc) *Hub {
	return &Hub{
		signer:  signer,
		onScan:  onScan,
		kiosks:  make(map[*websocket.Conn]bool),
		bridges: make(map[*websocket.Conn]bool),
	}
}

// Serve owns a connection until it closes. Role is "bridge" for the hardware
// side, anything else is treated as a kiosk display.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, role string) {
	isBridge := role == "bridge"
	h.register(conn, isBridge)
	defer h.unregister(conn, isBridge)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("bridge: read failed: %v", err)
			}
			return
		}

		switch msg.Type {
		case TypeScan:
			studentID, err := h.signer.Verify(msg.Payload)
			if err != nil {
				_ = conn.WriteJSON(Message{Type: TypeTagError})
				continue
			}
			if h.onScan != nil {
				if err := h.onScan(ctx, studentID); err != nil {
					log.Printf("bridge: scan handling failed for %s: %v", studentID, err)
					continue
				}
			}
			h.broadcastKiosks(Message{Type: TypeStudent, StudentID: studentID})

		case TypeWriteTag:
			if msg.StudentID == "" {
				_ = conn.WriteJSON(Message{Type: TypeTagError})
				continue
			}
			h.broadcastBridges(Message{
				Type:      TypeBridgeJob,
				StudentID: msg.StudentID,
				Payload:   h.signer.Payload(msg.StudentID),
			})
		}
	}
}

func (h *Hub) register(conn *websocket.Conn, isBridge bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if isBridge {
		h.bridges[conn] = true
	} else {
		h.kiosks[conn] = true
	}
}

func (h *Hub) unregister(conn *websocket.Conn, isBridge bool) {
	h.mu.Lock()
	if isBridge {
		delete(h.bridges, conn)
	} else {
		delete(h.kiosks, conn)
	}
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) broadcastKiosks(msg Message)  { h.broadcast(msg, false) }
func (h *Hub) broadcastBridges(msg Message) { h.broadcast(msg, true) }

func (h *Hub) broadcast(msg Message, toBridges bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.kiosks
	if toBridges {
		conns = h.bridges
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("bridge: write failed, dropping connection: %v", err)
			delete(conns, conn)
			_ = conn.Close()
		}
	}
}
