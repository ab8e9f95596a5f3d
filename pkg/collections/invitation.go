package collections

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// InvitationTTL is how long an invitation stays redeemable.
const InvitationTTL = 7 * 24 * time.Hour

// invitationTokenPrefix makes invitation tokens recognizable in logs
// and support tickets without revealing the secret part.
const invitationTokenPrefix = "gatherly_inv_"

// Invitation grants a specific user membership in an invite-type
// collection once they redeem the token.
type Invitation struct {
	ID           string     `json:"id"`
	CollectionID string     `json:"collection_id"`
	InviterID    string     `json:"inviter_id"`
	InviteeID    string     `json:"invitee_id"`
	Token        string     `json:"token,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
}

// Expired reports whether the invitation can no longer be redeemed.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Redeemed reports whether the invitation was already accepted.
func (i *Invitation) Redeemed() bool {
	return i.AcceptedAt != nil
}

// NewInvitationToken generates an opaque invitation token.
func NewInvitationToken() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate invitation token: %w", err)
	}
	return invitationTokenPrefix + hex.EncodeToString(raw), nil
}
