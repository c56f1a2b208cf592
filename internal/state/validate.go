package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/user/chatclaw/internal/types"
)

// decodeSession deserializes and validates an untrusted on-disk record.
// Records are externally authored (or corruptible) files; nothing crosses
// into trusted memory without passing validateSession. Reject-and-skip,
// never partial-trust.
func decodeSession(data []byte) (*types.Session, error) {
	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if err := validateSession(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// validateSession is a pure structural predicate over a decoded record.
func validateSession(sess *types.Session) error {
	if sess.ID == "" {
		return errors.New("missing id")
	}
	if sess.Messages == nil {
		return errors.New("missing messages list")
	}
	if sess.CreatedAt <= 0 {
		return errors.New("missing or invalid createdAt")
	}
	if sess.UpdatedAt <= 0 {
		return errors.New("missing or invalid updatedAt")
	}
	for i, msg := range sess.Messages {
		if msg.ID == "" {
			return fmt.Errorf("message %d: missing id", i)
		}
		if !msg.Role.Valid() {
			return fmt.Errorf("message %d: invalid role %q", i, msg.Role)
		}
	}
	if sess.Context == nil {
		sess.Context = []string{}
	}
	return nil
}
