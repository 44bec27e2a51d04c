package handlers

import "github.com/coder/websocket"

// Close codes the game socket sends beyond the standard ones.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // client did not offer the game subprotocol
	SnapshotError       websocket.StatusCode = 3001 // the game's cards could not be loaded
)
