package websockets

import (
	"context"
	"time"

	"babcia/internal/events"
)

const (
	AUTH_REQUEST  events.MessageType = "auth_request"
	AUTH_RESPONSE events.MessageType = "auth_response"
	AUTH_SUCCESS  events.MessageType = "auth_success"
	AUTH_FAILURE  events.MessageType = "auth_failure"

	SYSTEM_CHANNEL events.Channel = "system"

	AUTH_HANDSHAKE_TIMEOUT = 10 * time.Second
	AUTH_FAILURE_GRACE     = 100 * time.Millisecond
)

// startAuthTimeout disconnects the client if it has not authenticated in time
func (c *Client) startAuthTimeout() {
	time.AfterFunc(AUTH_HANDSHAKE_TIMEOUT, func() {
		if c.Status() == STATUS_AUTHENTICATED {
			return
		}
		c.Manager.log.Function("startAuthTimeout").
			Warn("Client failed to authenticate within timeout, disconnecting", "clientID", c.ID)
		c.sendAuthFailure("Authentication timeout")
	})
}

func (c *Client) handleAuthResponse(message events.Event) {
	log := c.Manager.log.Function("handleAuthResponse")

	if c.Status() == STATUS_AUTHENTICATED {
		log.Warn("Auth response from already authenticated client", "clientID", c.ID)
		return
	}

	token, ok := message.Data["token"].(string)
	if !ok || token == "" {
		log.Warn("Invalid token in auth response", "clientID", c.ID)
		c.sendAuthFailure("Invalid token format")
		return
	}

	subject, err := c.Manager.validator.ValidateToken(context.Background(), token)
	if err != nil {
		c.sendAuthFailure("Authentication failed")
		return
	}

	c.Subject = subject
	c.status.Store(STATUS_AUTHENTICATED)
	log.Info("Client authenticated", "clientID", c.ID, "subject", subject)
	c.deliver(newMessage(AUTH_SUCCESS, map[string]any{"subject": subject}))
}

func (c *Client) sendAuthFailure(reason string) {
	c.deliver(newMessage(AUTH_FAILURE, map[string]any{"reason": reason}))
	time.AfterFunc(AUTH_FAILURE_GRACE, func() {
		_ = c.Connection.Close()
	})
}
