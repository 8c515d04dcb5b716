package payload

import (
	"fmt"

	"liquidation-alerts/internal/risk"
)

// NotificationTypeLiquidation tags liquidation alerts among the channel's
// notification kinds.
const NotificationTypeLiquidation = 3

// Payload is the content-addressed alert body. Notification carries the
// plain internal title/body pair; Data carries the user-facing pair with
// display markup plus the notification type.
type Payload struct {
	Notification Notification `json:"notification"`
	Data         Data         `json:"data"`
}

// Notification is the internal title/message pair used for audit and logging.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Data holds the typed, user-facing alert content.
type Data struct {
	Type    int    `json:"type"`
	Subject string `json:"asub"`
	Message string `json:"amsg"`
}

// Build constructs the alert payload for a subscriber that crossed the risk
// threshold. displayName is the subscriber's resolved name or its abbreviated
// address. Call only when the decision says to alert.
func Build(displayName string, decision risk.Decision) Payload {
	title := "Compound Liquidity Alert!"
	plain := fmt.Sprintf("%s your account has %%%d left before it gets liquidated", displayName, decision.PercentRemaining)
	marked := fmt.Sprintf("Dear [d:%s] your account has %%%d left before it gets liquidated", displayName, decision.PercentRemaining)

	return Payload{
		Notification: Notification{
			Title: title,
			Body:  plain,
		},
		Data: Data{
			Type:    NotificationTypeLiquidation,
			Subject: title,
			Message: marked,
		},
	}
}
