// Package eventutil contains the payloads published on the internal streams.
package eventutil

// AccountUpdateType labels what changed about an account.
type AccountUpdateType string

const (
	// AccountPasswordUpdated is published after a successful password change.
	AccountPasswordUpdated AccountUpdateType = "password_updated"
	// AccountDeactivated is published after an account is deactivated.
	AccountDeactivated AccountUpdateType = "account_deactivated"
	// AccountThreePIDAdded is published after a third-party identifier is
	// associated with an account.
	AccountThreePIDAdded AccountUpdateType = "threepid_added"
	// AccountThreePIDRemoved is published after a third-party identifier
	// association is removed.
	AccountThreePIDRemoved AccountUpdateType = "threepid_removed"
)

// AccountUpdate is the wire payload for account change notifications. The
// affected user ID travels in the message header, not the body, so consumers
// can filter without unmarshalling.
type AccountUpdate struct {
	Type AccountUpdateType `json:"type"`
	// Medium and Address are only set for threepid updates.
	Medium  string `json:"medium,omitempty"`
	Address string `json:"address,omitempty"`
}
