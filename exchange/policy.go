package exchange

import (
	"context"

	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/pkg/errors"
)

// checkPolicy enforces ownerID's privacy policy against a sharing request:
// a rule must exist for the sharing type, the requester must be in the
// allowed-recipient set (or the set holds a wildcard), and the request's
// declared privacy level must be at least as strict as the rule's. A node
// with no stored policy denies everything.
func (svc *service) checkPolicy(ctx context.Context, ownerID string, req model.SharingRequest) error {
	policy, err := svc.GetPrivacyPolicy(ctx, ownerID)
	if err != nil {
		return errors.ErrPolicyDenied
	}

	rule, ok := policy.Rules[req.SharingType]
	if !ok {
		return errors.ErrPolicyDenied
	}
	if !rule.Admits(req.RequesterID) {
		return errors.ErrPolicyDenied
	}
	if !req.PrivacyLevel.AtLeast(rule.Level) {
		return errors.ErrPolicyDenied
	}

	return nil
}
