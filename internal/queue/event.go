// Package queue contains the background consumer that listens to the
// auth.events queue and appends one line per event to an audit log file.
package queue

import (
    "encoding/json"
    "fmt"
    "time"

    "github.com/iliyamo/storefront-backend/internal/model"
)

// formatEvent decodes body and renders the audit line for it.
func formatEvent(body []byte) (string, error) {
    var ev model.AuthEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return "", fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return "", fmt.Errorf("event %q has no type", ev.ID)
    }
    user := ev.UserID
    if user == "" {
        user = "-"
    }
    return fmt.Sprintf("[%s] %s | event_id=%s | user_id=%s\n",
        ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ID, user), nil
}
