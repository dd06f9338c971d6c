package campaigns

// SuccessfulDisconnectReasons are the provider reasons that count as "reached".
// Every other reason, including an empty one, makes the contact a redial candidate.
var SuccessfulDisconnectReasons = map[string]struct{}{
	"agent_hangup":  {},
	"user_hangup":   {},
	"call_transfer": {},
}

// IsReached reports whether a call log ended with a conversation.
func IsReached(l CallLog) bool {
	_, ok := SuccessfulDisconnectReasons[l.DisconnectionReason]
	return ok
}

// RedialCandidates returns the contacts with no reached call log, in input order.
// A contact with several logs is reached if any of them is.
func RedialCandidates(contacts []Contact, logs []CallLog) []Contact {
	reached := make(map[string]struct{}, len(logs))
	for _, l := range logs {
		if IsReached(l) {
			reached[l.ContactID] = struct{}{}
		}
	}
	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		if _, ok := reached[c.ID]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// redialFrom builds the new campaign and its fresh contacts from a finished source.
func redialFrom(src Campaign, candidates []Contact) (Campaign, []Contact) {
	c := Campaign{
		OwnerID:           src.OwnerID,
		Title:             src.Title + " (Redial)",
		Description:       src.Description,
		AgentID:           src.AgentID,
		OutboundNumber:    src.OutboundNumber,
		LocalTouchEnabled: src.LocalTouchEnabled,
		Status:            StatusScheduled,
	}
	contacts := make([]Contact, 0, len(candidates))
	for _, ct := range candidates {
		contacts = append(contacts, Contact{
			PhoneNumber:      ct.PhoneNumber,
			FirstName:        ct.FirstName,
			DynamicVariables: cloneVars(ct.DynamicVariables),
		})
	}
	return c, contacts
}
