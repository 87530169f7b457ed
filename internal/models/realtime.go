package models

// Message types exchanged between transports and the hub.
const (
	TypeText      = "text"
	TypePhoto     = "photo"
	TypeVideo     = "video"
	TypeSticker   = "sticker"
	TypeVoice     = "voice"
	TypeVideoNote = "video_note"
	TypeDocument  = "document"
	TypeAudio     = "audio"
	TypeAnimation = "animation"

	CommandChat   = "command_chat"
	CommandNext   = "command_next"
	CommandLeave  = "command_leave"
	CommandStatus = "command_status"

	SystemInfo        = "system_info"
	SystemSearchStart = "system_search_start"
	SystemMatchFound  = "system_match_found"
	SystemStopSelf    = "system_match_stop_self"
	SystemStopPartner = "system_match_stop_partner"
	SystemBanned      = "system_banned"
	SystemBroadcast   = "system_broadcast"
	SystemError       = "system_error"
)

type ChatMessage struct {
	SenderID string `json:"sender_id"`
	RoomID   string `json:"room_id,omitempty"`
	Content  string `json:"content"`
	Type     string `json:"type"`
	// Metadata carries the caption for media or the reason for commands.
	Metadata string `json:"metadata,omitempty"`
}

// IsSystem reports whether the message was produced by the hub rather than
// relayed from a partner.
func (m ChatMessage) IsSystem() bool {
	return len(m.Type) > 7 && m.Type[:7] == "system_"
}

// Admin bus actions.
const (
	AdminBan       = "ban"
	AdminUnban     = "unban"
	AdminEnd       = "end"
	AdminBroadcast = "broadcast"
)

// AdminCommand is published on the admin bus by cmd/admin and applied to the
// live state by the running service.
type AdminCommand struct {
	Action  string `json:"action"` // ban, unban, end, broadcast
	Subject string `json:"subject,omitempty"`
	Hours   int    `json:"hours,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Text    string `json:"text,omitempty"`
}
