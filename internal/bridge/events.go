package bridge

// Frames exchanged with the telephony peer. JSON text frames keyed by
// "event"; only the fields this relay reads or writes are modelled.
type telephonyEnvelope struct {
	Event string `json:"event"`
	Start struct {
		StreamSid string `json:"streamSid"`
	} `json:"start"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type mediaOutFrame struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

func newMediaOutFrame(streamSid, payload string) mediaOutFrame {
	f := mediaOutFrame{Event: "media", StreamSid: streamSid}
	f.Media.Payload = payload
	return f
}

type clearOutFrame struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

func newClearOutFrame(streamSid string) clearOutFrame {
	return clearOutFrame{Event: "clear", StreamSid: streamSid}
}

// Frames exchanged with the AI peer. JSON text frames keyed by "type".
type aiEnvelope struct {
	Type       string `json:"type"`
	AudioEvent struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event"`
	PingEvent struct {
		EventID string `json:"event_id"`
	} `json:"ping_event"`
	UserTranscriptionEvent struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event"`
	AgentResponseEvent struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`
}

type userAudioChunkFrame struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type pongFrame struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
}

type initClientData struct {
	Script  string `json:"script,omitempty"`
	Persona string `json:"persona,omitempty"`
	Context string `json:"context,omitempty"`
}

type initClientDataFrame struct {
	Type                             string         `json:"type"`
	ConversationInitiationClientData initClientData `json:"conversation_initiation_client_data"`
}

const (
	aiTypeConversationInitiationMetadata = "conversation_initiation_metadata"
	aiTypeAudio                          = "audio"
	aiTypeInterruption                   = "interruption"
	aiTypePing                           = "ping"
	aiTypeUserTranscript                 = "user_transcript"
	aiTypeAgentResponse                  = "agent_response"
)
