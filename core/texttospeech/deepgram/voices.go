package deepgram

type Voice string

const defaultVoice = VoiceAuraAsteriaEn

const (
	VoiceAuraAsteriaEn    Voice = "aura-asteria-en"
	VoiceAuraLunaEn       Voice = "aura-luna-en"
	VoiceAuraStellaEn     Voice = "aura-stella-en"
	VoiceAuraAthenaEn     Voice = "aura-athena-en"
	VoiceAuraHeraEn       Voice = "aura-hera-en"
	VoiceAuraOrionEn      Voice = "aura-orion-en"
	VoiceAuraArcasEn      Voice = "aura-arcas-en"
	VoiceAuraPerseusEn    Voice = "aura-perseus-en"
	VoiceAuraAngusEn      Voice = "aura-angus-en"
	VoiceAuraOrpheusEn    Voice = "aura-orpheus-en"
	VoiceAuraHeliosEn     Voice = "aura-helios-en"
	VoiceAuraZeusEn       Voice = "aura-zeus-en"
	VoiceAura2ThaliaEn    Voice = "aura-2-thalia-en"
	VoiceAura2AndromedaEn Voice = "aura-2-andromeda-en"
	VoiceAura2HelenaEn    Voice = "aura-2-helena-en"
	VoiceAura2ApolloEn    Voice = "aura-2-apollo-en"
	VoiceAura2ArcasEn     Voice = "aura-2-arcas-en"
	VoiceAura2AriesEn     Voice = "aura-2-aries-en"
)

func GetAvailableVoices() []Voice {
	return []Voice{
		VoiceAuraAsteriaEn,
		VoiceAuraLunaEn,
		VoiceAuraStellaEn,
		VoiceAuraAthenaEn,
		VoiceAuraHeraEn,
		VoiceAuraOrionEn,
		VoiceAuraArcasEn,
		VoiceAuraPerseusEn,
		VoiceAuraAngusEn,
		VoiceAuraOrpheusEn,
		VoiceAuraHeliosEn,
		VoiceAuraZeusEn,
		VoiceAura2ThaliaEn,
		VoiceAura2AndromedaEn,
		VoiceAura2HelenaEn,
		VoiceAura2ApolloEn,
		VoiceAura2ArcasEn,
		VoiceAura2AriesEn,
	}
}
