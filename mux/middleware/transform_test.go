package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-mux/agent-mux/mux"
)

func runTransform(t *testing.T, msg *mux.Message) {
	t.Helper()
	clock := mux.NewVirtualClock(time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC))
	spy := newHandlerSpy()
	_, err := Transformation(clock)(context.Background(), msg, spy.Handler)
	require.NoError(t, err)
}

func TestTransformation_DetectsEmails(t *testing.T) {
	msg := testMessage()
	msg.Content = "reach me at alice@example.com or bob@corp.io"
	runTransform(t, msg)

	v, _ := msg.MetadataValue(MetaContainsEmail)
	assert.Equal(t, true, v)
	count, _ := msg.MetadataValue(MetaEmailCount)
	assert.Equal(t, 2, count)
}

func TestTransformation_NoEmails(t *testing.T) {
	msg := testMessage()
	msg.Content = "no addresses here"
	runTransform(t, msg)

	v, _ := msg.MetadataValue(MetaContainsEmail)
	assert.Equal(t, false, v)
	count, _ := msg.MetadataValue(MetaEmailCount)
	assert.Equal(t, 0, count)
}

func TestTransformation_DetectsPhones(t *testing.T) {
	msg := testMessage()
	msg.Content = "call +1 555 123 4567 tomorrow"
	runTransform(t, msg)

	v, _ := msg.MetadataValue(MetaContainsPhone)
	assert.Equal(t, true, v)
	count, _ := msg.MetadataValue(MetaPhoneCount)
	assert.Equal(t, 1, count)
}

func TestTransformation_SanitizesExactCaseOnly(t *testing.T) {
	msg := testMessage()
	msg.Content = `click <script>alert(1)</script> or javascript:run() or onerror=x but <SCRIPT> stays`
	runTransform(t, msg)

	assert.NotContains(t, msg.Content, "<script>")
	assert.NotContains(t, msg.Content, "javascript:")
	assert.NotContains(t, msg.Content, "onerror=")
	// Exact-case match only: the upper-case variant is untouched.
	assert.Contains(t, msg.Content, "<SCRIPT>")
	assert.Contains(t, msg.Content, "[removed]")
}

func TestTransformation_TrimsContent(t *testing.T) {
	msg := testMessage()
	msg.Content = "   padded   "
	runTransform(t, msg)
	assert.Equal(t, "padded", msg.Content)
}

func TestTransformation_ProcessingTimestamp(t *testing.T) {
	msg := testMessage()
	runTransform(t, msg)
	assert.Equal(t, "2024-06-01T09:30:00Z", msg.MetadataString(MetaProcessingTimestamp))
}

func TestTransformation_DetectsIntents(t *testing.T) {
	msg := testMessage()
	msg.Subject = "How do I get a refund?"
	msg.Content = "I want to buy an upgrade but there is an error"
	runTransform(t, msg)

	intents := msg.MetadataString(MetaDetectedIntents)
	assert.Equal(t, "question,complaint,purchase,support", intents)
}

func TestTransformation_NoIntents(t *testing.T) {
	msg := testMessage()
	msg.Subject = "greetings"
	msg.Content = "just saying hi"
	runTransform(t, msg)
	assert.Equal(t, "", msg.MetadataString(MetaDetectedIntents))
}

func TestTransformation_DetectsLanguage(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"the server and the database are broken for you", "en"},
		{"hola gracias por la ayuda con el pedido", "es"},
		{"bonjour merci pour votre aide avec le produit", "fr"},
		{"hallo danke für die schnelle Antwort und die Hilfe", "de"},
		{"zzz qqq xxx", "en"}, // fallback
	}
	for _, tc := range cases {
		msg := testMessage()
		msg.Content = tc.content
		runTransform(t, msg)
		assert.Equal(t, tc.want, msg.MetadataString(MetaDetectedLanguage), "content: %s", tc.content)
	}
}
