package escalation

import (
	"strings"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/quickreply"
)

const ReasonInferenceUnavailable = "inference_unavailable"

var emergencyText = map[quickreply.Language]string{
	quickreply.English: "Sorry, our assistant is having trouble right now. A member of our team will follow up with you shortly.",
	quickreply.Thai:    "ขออภัยค่ะ ระบบผู้ช่วยขัดข้องชั่วคราว เจ้าหน้าที่จะติดต่อกลับโดยเร็วที่สุดค่ะ",
	quickreply.Spanish: "Lo sentimos, nuestro asistente tiene problemas en este momento. Un miembro de nuestro equipo te contactará en breve.",
}

var handoffText = map[quickreply.Language]string{
	quickreply.English: "Thanks for your message. A member of our team is handling this conversation and will reply soon.",
	quickreply.Thai:    "ได้รับข้อความแล้วค่ะ เจ้าหน้าที่กำลังดูแลบทสนทนานี้และจะตอบกลับโดยเร็วค่ะ",
	quickreply.Spanish: "Gracias por tu mensaje. Un miembro de nuestro equipo está atendiendo esta conversación y te responderá pronto.",
}

var contactLabel = map[quickreply.Language]string{
	quickreply.English: "You can also reach us directly: ",
	quickreply.Thai:    "หรือติดต่อเราได้โดยตรงที่ ",
	quickreply.Spanish: "También puedes contactarnos directamente: ",
}

// EmergencyReply is the scripted answer used when inference is unavailable.
// It always asks for escalation.
func EmergencyReply(lang quickreply.Language, contact string) contractx.AgentOutput {
	out := contractx.AgentOutput{
		ResponseText:  withContact(pick(emergencyText, lang), lang, contact),
		ReasoningNote: "inference service unavailable",
		Mood:          contractx.MoodApologetic,
		Escalation:    contractx.Escalation{ShouldEscalate: true, Reason: ReasonInferenceUnavailable},
	}
	out.Normalize()
	return out
}

// HandoffReply acknowledges a message on a conversation a human now owns.
func HandoffReply(lang quickreply.Language, contact string) contractx.AgentOutput {
	out := contractx.AgentOutput{
		ResponseText:  withContact(pick(handoffText, lang), lang, contact),
		ReasoningNote: "conversation is escalated",
		Mood:          contractx.MoodEmpathetic,
		Escalation:    contractx.Escalation{ShouldEscalate: true, Reason: "already_escalated"},
	}
	out.Normalize()
	return out
}

func pick(m map[quickreply.Language]string, lang quickreply.Language) string {
	if s, ok := m[lang]; ok {
		return s
	}
	return m[quickreply.English]
}

func withContact(text string, lang quickreply.Language, contact string) string {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return text
	}
	return text + " " + pick(contactLabel, lang) + contact
}
