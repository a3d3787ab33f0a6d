package packets

// REQUESTS FOR /api/tv/*

// ScriptErrorRequest is an uncaught error the screen caught in its page.
type ScriptErrorRequest struct {
	Message string `json:"message" binding:"required"`
	Source  string `json:"source"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// SocketMessage is what the screen may send up the websocket.
type SocketMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const SocketScriptError = "script_error"
