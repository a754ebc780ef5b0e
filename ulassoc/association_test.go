package ulassoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptPresentationContextsPreferencesAndRejections(t *testing.T) {
	policy := &StaticPolicy{Accepted: map[string][]string{
		"1.2.840.10008.1.1": {"1.2.840.10008.1.2.1", "1.2.840.10008.1.2"},
	}}
	proposed := []PresentationContext{
		{ID: 1, AbstractSyntaxUID: "1.2.840.10008.1.1", ProposedTransferSyntaxes: []string{"1.2.840.10008.1.2", "1.2.840.10008.1.2.1"}},
		{ID: 3, AbstractSyntaxUID: "1.9.9.9.unknown", ProposedTransferSyntaxes: []string{"1.2.840.10008.1.2"}},
		{ID: 5, AbstractSyntaxUID: "1.2.840.10008.1.1", ProposedTransferSyntaxes: []string{"9.9.9.unsupported-ts"}},
	}
	accepted := AcceptPresentationContexts(proposed, policy)
	require.Len(t, accepted, 3)

	assert.Equal(t, ResultAccept, accepted[0].Result)
	assert.Equal(t, "1.2.840.10008.1.2.1", accepted[0].AcceptedTransferSyntax)

	assert.Equal(t, ResultAbstractSyntaxNotSupported, accepted[1].Result)

	// unknown transfer syntax falls back to the first proposed one
	assert.Equal(t, ResultAccept, accepted[2].Result)
	assert.Equal(t, "9.9.9.unsupported-ts", accepted[2].AcceptedTransferSyntax)
}

func TestFindAcceptablePresentationContextPrefersExactCStoreMatch(t *testing.T) {
	assoc := NewAssociation("SCP", "SCU", []PresentationContext{
		{ID: 1, AbstractSyntaxUID: "1.2.840.10008.5.1.4.1.1.7", AcceptedTransferSyntax: "1.2.840.10008.1.2", Result: ResultAccept},
		{ID: 3, AbstractSyntaxUID: "1.2.840.10008.5.1.4.1.1.7", AcceptedTransferSyntax: "1.2.840.10008.1.2.1", Result: ResultAccept},
	})
	pc, ok := FindAcceptablePresentationContext(assoc, OutgoingMessage{
		AbstractSyntaxUID: "1.2.840.10008.5.1.4.1.1.7",
		TransferSyntaxUID: "1.2.840.10008.1.2.1",
	})
	require.True(t, ok)
	assert.EqualValues(t, 3, pc.ID)
}

func TestFindAcceptablePresentationContextFallsBackToAssigned(t *testing.T) {
	assoc := NewAssociation("SCP", "SCU", []PresentationContext{
		{ID: 1, AbstractSyntaxUID: "1.2.840.10008.1.1", Result: ResultAccept},
	})
	pc, ok := FindAcceptablePresentationContext(assoc, OutgoingMessage{
		AbstractSyntaxUID: "unrelated.sop.class",
		AssignedContextID: 1,
	})
	require.True(t, ok)
	assert.EqualValues(t, 1, pc.ID)
}

func TestFindAcceptablePresentationContextNoMatch(t *testing.T) {
	assoc := NewAssociation("SCP", "SCU", nil)
	_, ok := FindAcceptablePresentationContext(assoc, OutgoingMessage{AbstractSyntaxUID: "x"})
	assert.False(t, ok)
}
