// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Application close codes sent on the game socket.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // client did not offer the mighty subprotocol
	InvalidAuthTokenError websocket.StatusCode = 3001 // missing, expired or forged token
	NotSeatedError        websocket.StatusCode = 3002
)
